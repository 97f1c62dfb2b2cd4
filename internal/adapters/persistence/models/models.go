package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionValue represents console_session_values table. Each row is one key
// of one visitor's Token Store.
type SessionValue struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VisitorID string    `gorm:"size:64;not null;uniqueIndex:idx_visitor_key,priority:1" json:"visitor_id"`
	Key       string    `gorm:"column:item_key;size:64;not null;uniqueIndex:idx_visitor_key,priority:2" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func (SessionValue) TableName() string {
	return "console_session_values"
}

// AutoMigrate creates or updates the console tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&SessionValue{})
}

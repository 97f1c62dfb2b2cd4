package repositories

import (
	"context"
	"errors"
	"time"

	"sacco-console/internal/adapters/persistence/models"
	"sacco-console/internal/core/session"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultQueryTimeout = 5 * time.Second

// SessionValueRepository keeps Token Store values in MySQL so sessions
// survive a console restart. It implements session.Provider.
type SessionValueRepository struct {
	db      *gorm.DB
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewSessionValueRepository creates a new session value repository. Values
// not written for longer than ttl read as missing; zero disables expiry.
func NewSessionValueRepository(db *gorm.DB, ttl time.Duration) *SessionValueRepository {
	return &SessionValueRepository{
		db:      db,
		ttl:     ttl,
		timeout: defaultQueryTimeout,
		now:     time.Now,
	}
}

// Scope returns the storage of one visitor
func (r *SessionValueRepository) Scope(visitorID string) session.Storage {
	return &sessionValueScope{repo: r, visitorID: visitorID}
}

// PurgeIdle deletes values last written before the given time
func (r *SessionValueRepository) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("updated_at < ?", before).
		Delete(&models.SessionValue{})
	return result.RowsAffected, result.Error
}

// Purge deletes values older than the configured ttl
func (r *SessionValueRepository) Purge(ctx context.Context) (int64, error) {
	if r.ttl <= 0 {
		return 0, nil
	}
	return r.PurgeIdle(ctx, r.now().Add(-r.ttl))
}

func (r *SessionValueRepository) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *SessionValueRepository) get(visitorID, key string) (string, error) {
	ctx, cancel := r.context()
	defer cancel()

	query := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Where("item_key = ?", key)
	if r.ttl > 0 {
		query = query.Where("updated_at >= ?", r.now().Add(-r.ttl))
	}

	var value models.SessionValue
	if err := query.First(&value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", session.ErrKeyNotFound
		}
		return "", err
	}
	return value.Value, nil
}

func (r *SessionValueRepository) set(visitorID, key, value string) error {
	ctx, cancel := r.context()
	defer cancel()

	row := models.SessionValue{VisitorID: visitorID, Key: key, Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "visitor_id"}, {Name: "item_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *SessionValueRepository) delete(visitorID string, keys ...string) error {
	ctx, cancel := r.context()
	defer cancel()

	query := r.db.WithContext(ctx).Where("visitor_id = ?", visitorID)
	if len(keys) > 0 {
		query = query.Where("item_key IN ?", keys)
	}
	return query.Delete(&models.SessionValue{}).Error
}

type sessionValueScope struct {
	repo      *SessionValueRepository
	visitorID string
}

func (s *sessionValueScope) Get(key string) (string, error) {
	return s.repo.get(s.visitorID, key)
}

func (s *sessionValueScope) Set(key, value string) error {
	return s.repo.set(s.visitorID, key, value)
}

func (s *sessionValueScope) Delete(key string) error {
	return s.repo.delete(s.visitorID, key)
}

func (s *sessionValueScope) Clear() error {
	return s.repo.delete(s.visitorID)
}

package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is an identifier issued by the SACCO API. The API is inconsistent about
// sending ids as numbers or strings, so both are accepted.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a string
func (id ID) String() string {
	return string(id)
}

// Branch is the branch a staff user belongs to
type Branch struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
	IsMain   bool   `json:"isMain,omitempty"`
	Location string `json:"location,omitempty"`
}

// User is the staff user embedded in a Session. It is only ever replaced as a
// whole, never patched field by field.
type User struct {
	ID                     ID      `json:"id"`
	FirstName              string  `json:"firstName"`
	LastName               string  `json:"lastName"`
	Email                  string  `json:"email"`
	Role                   Role    `json:"role"`
	Department             string  `json:"department,omitempty"`
	Status                 string  `json:"status,omitempty"`
	PasswordChangeRequired bool    `json:"passwordChangeRequired"`
	BranchID               ID      `json:"branchId,omitempty"`
	Branch                 *Branch `json:"branch,omitempty"`
}

// FullName returns the display name of the user
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Session is the authenticated state of one visitor
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// SystemStatus is the backend initialization snapshot
type SystemStatus struct {
	IsInitialized   bool `json:"isInitialized"`
	HasCompany      bool `json:"hasCompany"`
	HasAdminUser    bool `json:"hasAdminUser"`
	HasMainBranch   bool `json:"hasMainBranch"`
	NeedsOnboarding bool `json:"needsOnboarding"`

	// Unreachable is set when the status could not be fetched and the
	// snapshot is the fail-safe default.
	Unreachable bool `json:"unreachable,omitempty"`
}

// PendingTwoFactor lives between a login that answered requires_2fa and the
// matching OTP verification
type PendingTwoFactor struct {
	UserID          ID     `json:"userId"`
	TwoFactorMethod string `json:"twoFactorMethod"`
	Email           string `json:"email,omitempty"`
	BranchID        ID     `json:"branchId,omitempty"`
}

// PendingPasswordChange holds a freshly issued session that may not be used
// until the password has been changed
type PendingPasswordChange struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Notification is an in-app notification for the current user
type Notification struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type,omitempty"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// LockedAccount is a staff account locked after failed logins
type LockedAccount struct {
	UserID         ID     `json:"userId"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	FailedAttempts int    `json:"failedAttempts"`
	LockedAt       string `json:"lockedAt,omitempty"`
	LockedUntil    string `json:"lockedUntil,omitempty"`
}

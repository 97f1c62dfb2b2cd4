// Package session keeps the authenticated state of a visitor: the durable
// token store and the short-lived pending store used during two-factor and
// forced password change flows.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"sacco-console/internal/core/domain"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// TokenStore persists the bearer token and the serialized user of one
// visitor. Token and user are written and cleared together.
type TokenStore struct {
	storage Storage
}

// NewTokenStore wraps a visitor storage scope
func NewTokenStore(storage Storage) *TokenStore {
	return &TokenStore{storage: storage}
}

// Token returns the stored bearer token
func (s *TokenStore) Token() (string, bool) {
	token, err := s.storage.Get(keyToken)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// SetSession stores token and user. If the user cannot be written the token
// is removed again so neither is left orphaned.
func (s *TokenStore) SetSession(token string, user domain.User) error {
	if token == "" {
		return fmt.Errorf("set session: %w", domain.ErrInvalidInput)
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.Set(keyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.storage.Set(keyUser, string(raw)); err != nil {
		_ = s.storage.Delete(keyToken)
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// ReplaceUser swaps the stored user record for an authenticated session.
// The token is written again so both halves age together in storages that
// expire values per key.
func (s *TokenStore) ReplaceUser(user domain.User) error {
	token, ok := s.Token()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	return s.SetSession(token, user)
}

// MoveTo hands the session over to dst, leaving this store empty
func (s *TokenStore) MoveTo(dst *TokenStore) error {
	return move(s.storage, dst.storage, keyToken, keyUser)
}

// Clear removes token and user
func (s *TokenStore) Clear() error {
	errToken := s.storage.Delete(keyToken)
	errUser := s.storage.Delete(keyUser)
	return errors.Join(errToken, errUser)
}

// CurrentUser parses the stored user. Corrupt data is treated as a broken
// session: both keys are cleared and no user is returned.
func (s *TokenStore) CurrentUser() (*domain.User, bool) {
	raw, err := s.storage.Get(keyUser)
	if err != nil || raw == "" {
		return nil, false
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		_ = s.Clear()
		return nil, false
	}
	return &user, true
}

// IsAuthenticated is true iff a token and a parsable user are both present
func (s *TokenStore) IsAuthenticated() bool {
	_, ok := s.Session()
	return ok
}

// Session returns the full session when both halves are present. The token
// is written first and so expires first; a user left behind by per-key
// expiry is removed.
func (s *TokenStore) Session() (*domain.Session, bool) {
	token, ok := s.Token()
	if !ok {
		if _, err := s.storage.Get(keyUser); err == nil {
			_ = s.storage.Delete(keyUser)
		}
		return nil, false
	}
	user, ok := s.CurrentUser()
	if !ok {
		return nil, false
	}
	return &domain.Session{Token: token, User: *user}, true
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"
)

// UnlockService lets administrators release accounts locked after failed
// logins
type UnlockService struct {
	client *api.Client
}

// NewUnlockService creates a new unlock service
func NewUnlockService(client *api.Client) *UnlockService {
	return &UnlockService{client: client}
}

// LockedAccounts lists currently locked accounts
func (s *UnlockService) LockedAccounts(ctx context.Context) ([]domain.LockedAccount, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/auth/unlock/admin/locked-accounts", &raw); err != nil {
		return nil, err
	}

	var list []domain.LockedAccount
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Data     []domain.LockedAccount `json:"data"`
		Accounts []domain.LockedAccount `json:"accounts"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode locked accounts: %w", err)
	}
	if wrapped.Accounts != nil {
		return wrapped.Accounts, nil
	}
	return wrapped.Data, nil
}

// Unlock releases the account of userID
func (s *UnlockService) Unlock(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}
	return s.client.Post(ctx, "/auth/unlock/admin/unlock/"+url.PathEscape(userID), nil, nil)
}

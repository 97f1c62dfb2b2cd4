package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"
)

// NotificationService reads and acknowledges in-app notifications
type NotificationService struct {
	client *api.Client
}

// NewNotificationService creates a new notification service
func NewNotificationService(client *api.Client) *NotificationService {
	return &NotificationService{client: client}
}

// List returns one page of notifications
func (s *NotificationService) List(ctx context.Context, query url.Values) ([]domain.Notification, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/notifications", &raw, api.WithQuery(query)); err != nil {
		return nil, err
	}

	var list []domain.Notification
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Data          []domain.Notification `json:"data"`
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	if wrapped.Notifications != nil {
		return wrapped.Notifications, nil
	}
	return wrapped.Data, nil
}

// UnreadCount returns the number of unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count       *int `json:"count"`
		UnreadCount *int `json:"unreadCount"`
	}
	if err := s.client.Get(ctx, "/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	switch {
	case out.Count != nil:
		return *out.Count, nil
	case out.UnreadCount != nil:
		return *out.UnreadCount, nil
	}
	return 0, nil
}

// MarkRead marks one notification as read
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}
	return s.client.Patch(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllRead marks every notification of the user as read
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	return s.client.Patch(ctx, "/notifications/read-all", nil, nil)
}

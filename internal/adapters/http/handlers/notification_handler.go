package handlers

import (
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/pkg/pagination"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler handles notification endpoints
type NotificationHandler struct{}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{}
}

// List returns the user's notifications
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} response.Response
// @Router /dashboard/notifications [get]
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	v := visitor.From(c)
	list, err := v.Notifications.List(c.UserContext(), pagination.GetParams(c).Values())
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to load notifications")
	}
	return response.Success(c, "", list)
}

// UnreadCount returns the unread count, from the poller when it has one
// @Summary Unread notification count
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Response
// @Router /dashboard/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	v := visitor.From(c)
	if count, ok := v.UnreadCount(); ok {
		return response.Success(c, "", fiber.Map{"count": count})
	}

	count, err := v.Notifications.UnreadCount(c.UserContext())
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to load notifications")
	}
	return response.Success(c, "", fiber.Map{"count": count})
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Response
// @Router /dashboard/notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	v := visitor.From(c)
	if err := v.Notifications.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, v.Logger(), err, "Failed to update notification")
	}
	return response.Success(c, "Notification marked as read", nil)
}

// MarkAllRead marks every notification as read
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Response
// @Router /dashboard/notifications/read-all [patch]
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	v := visitor.From(c)
	if err := v.Notifications.MarkAllRead(c.UserContext()); err != nil {
		return respondError(c, v.Logger(), err, "Failed to update notifications")
	}
	return response.Success(c, "All notifications marked as read", nil)
}

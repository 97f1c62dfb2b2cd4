package handlers

import (
	"sacco-console/internal/adapters/http/middleware"
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UnlockHandler handles the administration of locked accounts
type UnlockHandler struct{}

// NewUnlockHandler creates a new unlock handler
func NewUnlockHandler() *UnlockHandler {
	return &UnlockHandler{}
}

// LockedAccounts lists locked accounts
// @Summary Locked accounts
// @Description Lists staff accounts locked after failed logins (admin only)
// @Tags Security
// @Produce json
// @Success 200 {object} response.Response
// @Success 303 {object} response.Response
// @Router /dashboard/security/locked-accounts [get]
func (h *UnlockHandler) LockedAccounts(c *fiber.Ctx) error {
	v := visitor.From(c)
	accounts, err := v.Unlock.LockedAccounts(c.UserContext())
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to load locked accounts")
	}
	return response.Success(c, "", accounts)
}

// Unlock releases a locked account
// @Summary Unlock account
// @Tags Security
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Response
// @Router /dashboard/security/locked-accounts/{userId}/unlock [post]
func (h *UnlockHandler) Unlock(c *fiber.Ctx) error {
	v := visitor.From(c)
	userID := c.Params("userId")
	if err := v.Unlock.Unlock(c.UserContext(), userID); err != nil {
		return respondError(c, v.Logger(), err, "Failed to unlock account")
	}

	if admin := middleware.CurrentUser(c); admin != nil {
		v.Logger().Info("account unlocked", zap.String("user_id", userID), zap.String("by", admin.ID.String()))
	}
	return response.Success(c, "Account unlocked", nil)
}

package handlers

import (
	"strings"
	"time"

	"sacco-console/internal/adapters/http/middleware"
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/config"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// legacyCookies may still be set by older console builds; they are cleared
// whenever a session ends
var legacyCookies = []string{"token", "auth_token"}

// AuthHandler handles login, two-factor, password and logout endpoints
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string    `json:"email" form:"email"`
	Password string    `json:"password" form:"password"`
	BranchID domain.ID `json:"branchId" form:"branchId"`
}

// OTPRequest represents the body of OTP endpoints
type OTPRequest struct {
	UserID domain.ID `json:"userId" form:"userId"`
	OTP    string    `json:"otp" form:"otp"`
}

// ChangePasswordRequest represents change password request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// LoginPage handles the login page
// @Summary Login page
// @Description Returns the login page state; signed-in visitors are sent to the dashboard
// @Tags Auth
// @Produce json
// @Param expired query string false "Set when the previous session expired"
// @Success 200 {object} response.Response
// @Success 303 {object} response.Response
// @Router /login [get]
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	v := visitor.From(c)
	if v.Auth.IsAuthenticated() {
		return response.SeeOther(c, services.DashboardPath)
	}

	return response.Success(c, "", fiber.Map{
		"page":            "login",
		"sessionExpired":  c.Query("expired") != "",
		"passwordChanged": c.Query("passwordChanged") != "",
	})
}

// Login handles credential submission
// @Summary Submit credentials
// @Description Authenticates against the SACCO API and continues with the dashboard, the OTP form or the password change form
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 303 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 423 {object} response.Response
// @Router /login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	v := visitor.From(c)

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	result, err := v.Auth.Login(c.UserContext(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		BranchID: req.BranchID,
	})
	if err != nil {
		return respondError(c, v.Logger(), err, "Login failed")
	}
	return h.continueLogin(c, v, result)
}

// continueLogin sends the visitor wherever the login flow goes next
func (h *AuthHandler) continueLogin(c *fiber.Ctx, v *visitor.Visitor, result *services.LoginResult) error {
	switch result.Outcome {
	case services.OutcomeAuthenticated:
		v, err := h.rotate(c, v)
		if err != nil {
			return err
		}
		v.StartPolling()
		return response.SeeOther(c, services.DashboardPath)
	case services.OutcomeRequiresTwoFactor:
		if _, err := h.rotate(c, v); err != nil {
			return err
		}
		return response.SeeOther(c, services.OTPPath)
	case services.OutcomePasswordChangeRequired:
		if _, err := h.rotate(c, v); err != nil {
			return err
		}
		h.clearLegacyCookies(c)
		return response.SeeOther(c, services.ChangePasswordPath)
	}
	h.clearLegacyCookies(c)
	return response.SeeOther(c, services.LoginPath+"?passwordChanged=1")
}

// OTPPage handles the OTP form
// @Summary OTP form
// @Description Returns the pending two-factor login
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Success 303 {object} response.Response
// @Router /login/otp [get]
func (h *AuthHandler) OTPPage(c *fiber.Ctx) error {
	v := visitor.From(c)
	pending, ok := v.Auth.PendingTwoFactor()
	if !ok {
		return response.SeeOther(c, services.LoginPath)
	}

	return response.Success(c, "", fiber.Map{
		"page":            "otp",
		"userId":          pending.UserID,
		"twoFactorMethod": pending.TwoFactorMethod,
		"email":           maskEmail(pending.Email),
	})
}

// RequestOTP handles re-sending the one-time code
// @Summary Request OTP
// @Description Asks the SACCO API to send a new one-time code for the pending login
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body OTPRequest false "Pending user"
// @Success 200 {object} response.Response
// @Router /login/otp/request [post]
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	v := visitor.From(c)

	var req OTPRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	if err := v.Auth.RequestOTP(c.UserContext(), req.UserID); err != nil {
		return respondError(c, v.Logger(), err, "Failed to send code")
	}
	return response.Success(c, "A new code has been sent", nil)
}

// VerifyOTP handles OTP submission
// @Summary Verify OTP
// @Description Completes a two-factor login
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body OTPRequest true "Code"
// @Success 303 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /login/otp/verify [post]
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	v := visitor.From(c)

	var req OTPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.OTP) == "" {
		return response.BadRequest(c, "Code is required")
	}

	result, err := v.Auth.VerifyOTP(c.UserContext(), req.UserID, req.OTP)
	if err != nil {
		return respondError(c, v.Logger(), err, "Verification failed")
	}
	return h.continueLogin(c, v, result)
}

// Abandon handles leaving an unfinished login
// @Summary Abandon login
// @Tags Auth
// @Produce json
// @Success 303 {object} response.Response
// @Router /login/abandon [post]
func (h *AuthHandler) Abandon(c *fiber.Ctx) error {
	v := visitor.From(c)
	if err := v.Auth.Abandon(); err != nil {
		v.Logger().Warn("abandon login failed", zap.Error(err))
	}
	h.clearLegacyCookies(c)
	return response.SeeOther(c, services.LoginPath)
}

// ChangePasswordPage handles the change password form
// @Summary Change password form
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Success 303 {object} response.Response
// @Router /change-password [get]
func (h *AuthHandler) ChangePasswordPage(c *fiber.Ctx) error {
	v := visitor.From(c)
	forced := v.Auth.HasPendingPasswordChange()
	if !forced && !v.Auth.IsAuthenticated() {
		return response.SeeOther(c, services.LoginPath)
	}
	return response.Success(c, "", fiber.Map{
		"page":   "change-password",
		"forced": forced,
	})
}

// ChangePassword handles both the forced and the voluntary password change
// @Summary Change password
// @Description Changes the password; a forced change either signs the user in or asks for a fresh login
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ChangePasswordRequest true "Passwords"
// @Success 200 {object} response.Response
// @Success 303 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /change-password [post]
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	v := visitor.From(c)

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return response.BadRequest(c, "Current and new password are required")
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		return response.BadRequest(c, "Passwords do not match")
	}

	if v.Auth.HasPendingPasswordChange() {
		result, err := v.Auth.CompleteForcedPasswordChange(c.UserContext(), req.CurrentPassword, req.NewPassword)
		if err != nil {
			return respondError(c, v.Logger(), err, "Failed to change password")
		}
		return h.continueLogin(c, v, result)
	}

	if err := v.Auth.ChangePassword(c.UserContext(), req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, v.Logger(), err, "Failed to change password")
	}
	return response.Success(c, "Password changed successfully", nil)
}

// Logout handles logout
// @Summary Logout
// @Description Ends the session locally and, best effort, on the SACCO API
// @Tags Auth
// @Produce json
// @Success 303 {object} response.Response
// @Router /logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	v := visitor.From(c)

	v.StopPolling()
	if err := v.Auth.Logout(c.UserContext()); err != nil {
		v.Logger().Warn("logout cleanup failed", zap.Error(err))
	}
	if _, err := h.rotate(c, v); err != nil {
		return err
	}
	h.clearLegacyCookies(c)
	return response.SeeOther(c, services.LoginPath)
}

// UpdateProfile handles profile updates of the signed-in user
// @Summary Update profile
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body map[string]interface{} true "Profile fields"
// @Success 200 {object} response.Response
// @Router /dashboard/profile [put]
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	v := visitor.From(c)

	var fields map[string]any
	if err := c.BodyParser(&fields); err != nil || len(fields) == 0 {
		return response.BadRequest(c, "Invalid request body")
	}
	// Fields that only the administration may change
	for _, key := range []string{"id", "role", "status", "passwordChangeRequired"} {
		delete(fields, key)
	}

	user, err := v.Auth.UpdateProfile(c.UserContext(), fields)
	if err != nil {
		return respondError(c, v.Logger(), err, "Failed to update profile")
	}
	return response.Success(c, "Profile updated", user)
}

// rotate moves the visitor to a fresh session id
func (h *AuthHandler) rotate(c *fiber.Ctx, v *visitor.Visitor) (*visitor.Visitor, error) {
	next, err := middleware.RotateVisitor(c)
	if err != nil {
		v.Logger().Error("session rotation failed", zap.Error(err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, "session unavailable")
	}
	return next, nil
}

// clearLegacyCookies clears cookies older console builds kept the token in
func (h *AuthHandler) clearLegacyCookies(c *fiber.Ctx) {
	for _, name := range legacyCookies {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Now().Add(-1 * time.Hour),
			Secure:   h.cfg.Cookie.Secure,
			HTTPOnly: true,
			SameSite: h.cfg.Cookie.SameSite,
			Domain:   h.cfg.Cookie.Domain,
		})
	}
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email
	}
	local := []rune(email[:at])
	if len(local) <= 1 {
		return email
	}
	return string(local[0]) + strings.Repeat("*", len(local)-1) + email[at:]
}

package middleware

import (
	"strings"
	"time"

	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
	"sacco-console/internal/pkg/jwt"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	localsUser   = "user"
	localsStatus = "systemStatus"
)

var statusExempt = []string{"/health", "/swagger", "/api/", "/system/"}

// StatusGate routes page loads to onboarding while the SACCO is not set up,
// and away from onboarding once it is. Protected routes are left to the
// auth guard so a session in progress is not interrupted.
//
// Each GET is one page load and gets its own services.StatusGate, so the
// gate navigates at most once per load. The status it evaluates is cached
// on the visitor and fetched only once.
func StatusGate(policy *services.AccessPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet || isStatusExempt(c.Path()) {
			return c.Next()
		}
		v := visitor.From(c)
		if v == nil {
			return c.Next()
		}

		status := v.Status(c.UserContext())
		c.Locals(localsStatus, status)

		if target, ok := services.NewStatusGate(policy).Evaluate(status, c.Path()); ok {
			return response.SeeOther(c, target)
		}
		return c.Next()
	}
}

func isStatusExempt(path string) bool {
	for _, prefix := range statusExempt {
		if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// AuthGuard sends visitors without a session away from protected routes.
// A login held back for a password change goes to the change form instead,
// and a stored token whose exp has passed ends the session right away.
// Signed-in visitors get their notification poller started.
func AuthGuard(policy *services.AccessPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !policy.IsProtected(c.Path()) {
			return c.Next()
		}

		v := visitor.From(c)
		if v == nil {
			return response.SeeOther(c, services.LoginPath)
		}

		user, ok := v.User()
		if !ok {
			if v.Auth.HasPendingPasswordChange() {
				return response.SeeOther(c, services.ChangePasswordPath)
			}
			return response.SeeOther(c, services.LoginPath)
		}
		if user.PasswordChangeRequired {
			return response.SeeOther(c, services.ChangePasswordPath)
		}
		// a token past its exp is dropped here instead of waiting for the
		// API to reject it
		if token, ok := v.Tokens.Token(); ok && jwt.Expired(token, time.Now()) {
			v.Logger().Info("stored token expired", zap.String("path", c.Path()))
			v.Client.ExpireSession()
			return response.SeeOther(c, services.LoginPath)
		}

		c.Locals(localsUser, user)
		v.StartPolling()
		return c.Next()
	}
}

// RoleGuard admits only signed-in users holding one of roles. Nothing of
// the wrapped handler runs before the decision.
func RoleGuard(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return response.SeeOther(c, services.LoginPath)
		}
		if !domain.HasAnyRole(user, roles...) {
			return response.SeeOther(c, services.UnauthorizedPath)
		}
		return c.Next()
	}
}

// CurrentUser returns the signed-in user of the request
func CurrentUser(c *fiber.Ctx) *domain.User {
	if user, ok := c.Locals(localsUser).(*domain.User); ok {
		return user
	}
	if v := visitor.From(c); v != nil {
		if user, ok := v.User(); ok {
			c.Locals(localsUser, user)
			return user
		}
	}
	return nil
}

// SystemStatus returns the status resolved by StatusGate, if it ran
func SystemStatus(c *fiber.Ctx) (domain.SystemStatus, bool) {
	status, ok := c.Locals(localsStatus).(domain.SystemStatus)
	return status, ok
}

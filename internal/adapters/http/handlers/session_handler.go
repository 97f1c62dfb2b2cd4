package handlers

import (
	"time"

	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/pkg/jwt"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SessionHandler exposes the visitor's session to the browser
type SessionHandler struct{}

// NewSessionHandler creates a new session handler
func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Session returns the current session summary. The token itself never
// leaves the console.
// @Summary Current session
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/session [get]
func (h *SessionHandler) Session(c *fiber.Ctx) error {
	v := visitor.From(c)

	data := fiber.Map{
		"authenticated": false,
		"state":         v.Auth.State(),
		"redirecting":   v.State.Guard().Redirecting(),
	}

	sess, ok := v.Tokens.Session()
	if !ok {
		return response.Success(c, "", data)
	}

	data["authenticated"] = true
	data["user"] = sess.User
	if exp, ok := jwt.ExpiresAt(sess.Token); ok {
		data["expiresAt"] = exp.UTC().Format(time.RFC3339)
	}
	if count, ok := v.UnreadCount(); ok {
		data["unreadCount"] = count
	}
	return response.Success(c, "", data)
}

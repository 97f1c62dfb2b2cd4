package handlers

import (
	"sacco-console/internal/adapters/http/middleware"
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SystemHandler handles the application root, onboarding and the
// unauthorized page
type SystemHandler struct{}

// NewSystemHandler creates a new system handler
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{}
}

func status(c *fiber.Ctx) domain.SystemStatus {
	if s, ok := middleware.SystemStatus(c); ok {
		return s
	}
	return visitor.From(c).Status(c.UserContext())
}

// Root handles the application root
// @Summary Application root
// @Description Sends signed-in users to the dashboard and everyone else to login
// @Tags System
// @Produce json
// @Success 303 {object} response.Response
// @Router / [get]
func (h *SystemHandler) Root(c *fiber.Ctx) error {
	if visitor.From(c).Auth.IsAuthenticated() {
		return response.SeeOther(c, services.DashboardPath)
	}
	return response.SeeOther(c, services.LoginPath)
}

// Onboarding handles the onboarding page
// @Summary Onboarding page
// @Description Returns the system status; retry is offered when the SACCO API could not be reached
// @Tags System
// @Produce json
// @Success 200 {object} response.Response
// @Router /onboarding [get]
func (h *SystemHandler) Onboarding(c *fiber.Ctx) error {
	s := status(c)
	return response.Success(c, "", fiber.Map{
		"page":     "onboarding",
		"status":   s,
		"canRetry": s.Unreachable,
	})
}

// Initialize submits the onboarding form
// @Summary Initialize system
// @Description Creates the company, main branch and first administrator
// @Tags System
// @Accept json
// @Produce json
// @Param body body map[string]interface{} true "Onboarding data"
// @Success 303 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /onboarding [post]
func (h *SystemHandler) Initialize(c *fiber.Ctx) error {
	v := visitor.From(c)

	var payload map[string]any
	if err := c.BodyParser(&payload); err != nil || len(payload) == 0 {
		return response.BadRequest(c, "Invalid request body")
	}

	if _, err := v.System.Initialize(c.UserContext(), payload); err != nil {
		return respondError(c, v.Logger(), err, "Failed to initialize system")
	}
	v.State.InvalidateStatus()
	return response.SeeOther(c, services.LoginPath)
}

// RetryStatus fetches the system status again
// @Summary Retry system status
// @Tags System
// @Produce json
// @Success 200 {object} response.Response
// @Success 303 {object} response.Response
// @Router /system/status/retry [post]
func (h *SystemHandler) RetryStatus(c *fiber.Ctx) error {
	s := visitor.From(c).RefreshStatus(c.UserContext())
	if !s.NeedsOnboarding {
		return response.SeeOther(c, services.RootPath)
	}
	return response.Success(c, "", fiber.Map{
		"status":   s,
		"canRetry": s.Unreachable,
	})
}

// Unauthorized handles the page shown to users lacking a role
// @Summary Unauthorized page
// @Tags System
// @Produce json
// @Success 403 {object} response.Response
// @Router /unauthorized [get]
func (h *SystemHandler) Unauthorized(c *fiber.Ctx) error {
	return response.Forbidden(c, "You don't have permission to access this page")
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	storageCheck func() error
}

// NewHealthHandler creates a new health handler. storageCheck may be nil
// when sessions are kept in memory.
func NewHealthHandler(storageCheck func() error) *HealthHandler {
	return &HealthHandler{storageCheck: storageCheck}
}

// HealthCheck handles health check
// @Summary Health check
// @Description Check console and session storage health
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	storage := "memory"
	if h.storageCheck != nil {
		storage = "healthy"
		if err := h.storageCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"checks": fiber.Map{"console": "healthy", "storage": "unhealthy"},
			})
		}
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"checks": fiber.Map{
			"console": "healthy",
			"storage": storage,
		},
	})
}

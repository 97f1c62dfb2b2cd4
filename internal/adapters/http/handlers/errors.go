package handlers

import (
	"errors"
	"net/http"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError turns a service error into a console response. Answers of
// the SACCO API keep their status where it means something to the browser;
// anything else is a bad gateway.
func respondError(c *fiber.Ctx, log *zap.Logger, err error, fallback string) error {
	var apiErr *api.Error
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrWeakPassword):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotAuthenticated):
		return response.SeeOther(c, services.LoginPath)
	case errors.Is(err, domain.ErrNoPendingTwoFactor), errors.Is(err, domain.ErrNoPendingPasswordChange):
		return response.SeeOther(c, services.LoginPath)
	case errors.As(err, &apiErr):
		return respondAPIError(c, log, apiErr, fallback)
	}

	log.Error(fallback, zap.Error(err))
	return response.BadGateway(c, fallback)
}

func respondAPIError(c *fiber.Ctx, log *zap.Logger, err *api.Error, fallback string) error {
	message := err.Message
	if message == "" {
		message = fallback
	}

	switch err.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if len(err.Errors) > 0 {
			return response.ValidationError(c, message, err.Errors)
		}
		return response.BadRequest(c, message)
	case http.StatusUnauthorized:
		return response.Unauthorized(c, message)
	case http.StatusForbidden:
		return response.Forbidden(c, message)
	case http.StatusNotFound:
		return response.NotFound(c, message)
	case http.StatusConflict, http.StatusLocked, http.StatusTooManyRequests:
		return response.Error(c, err.StatusCode, message)
	}

	log.Error(fallback, zap.Int("upstream_status", err.StatusCode), zap.String("upstream_message", err.Message))
	return response.BadGateway(c, fallback)
}

package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/observability"
)

const (
	// sessionCookie carries the access token for browser page navigation.
	sessionCookie = "session_token"
	// oauthStateCookie pins the OAuth state value to the browser that
	// started the flow.
	oauthStateCookie = "oauth_state"
)

// statusForError maps application error codes to HTTP statuses. Handlers
// call fail() instead of choosing statuses inline.
func statusForError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeConflict, models.CodeTokenUsed:
		return fiber.StatusConflict
	case models.CodeInvalidCredentials, models.CodeUnauthorized, models.CodeAuthenticationError:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeRateLimited:
		return fiber.StatusTooManyRequests
	case models.CodeTokenExpired:
		return fiber.StatusGone
	case models.CodeUpstreamFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		observability.RecordErrorInContext(c.UserContext(), err)
	}
	return models.RespondWithError(c, status, err)
}

// currentUserID returns the authenticated user id set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error codes used across the API. Handlers map these to HTTP statuses at
// the boundary; nothing below the handler layer touches fiber.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenUsed           = "TOKEN_ALREADY_USED"
	CodeUpstreamFailure     = "UPSTREAM_FAILURE"
	CodeInternal            = "INTERNAL_ERROR"
	CodeAuthenticationError = "AUTHENTICATION_FAILED"
)

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewConflictError marks requests that collide with existing state, such as
// registering an email that already has an account.
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

// NewInvalidCredentialsError is returned for both "no such user" and "wrong
// password" so callers cannot probe which emails have accounts.
func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:    CodeInvalidCredentials,
		Message: "Invalid credentials",
	}
}

// NewAuthenticationFailedError covers failures of the external OAuth
// exchange; the provider error is kept server-side only.
func NewAuthenticationFailedError(err error) *AppError {
	return &AppError{
		Code:    CodeAuthenticationError,
		Message: "Authentication failed",
		Err:     err,
	}
}

func NewRateLimitedError() *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "Too many requests, please try again later.",
	}
}

func NewTokenExpiredError() *AppError {
	return &AppError{
		Code:    CodeTokenExpired,
		Message: "This link has expired, please request a new one",
	}
}

func NewTokenUsedError() *AppError {
	return &AppError{
		Code:    CodeTokenUsed,
		Message: "This link has already been used",
	}
}

// NewUpstreamError wraps failures of outbound dependencies (mail transport,
// OAuth providers). The wrapped cause is logged, never serialized.
func NewUpstreamError(err error) *AppError {
	return &AppError{
		Code:    CodeUpstreamFailure,
		Message: "An upstream service is unavailable, please try again",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		// Internal details never leak to the client.
		if appErr.Err != nil && appErr.Code == CodeValidation {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

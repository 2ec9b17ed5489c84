package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/auth"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a plain success message.
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Session errors
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, service.ErrAuthenticationOrLoad):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrControllerClosed):
		return http.StatusGone

	// Upstream store failures
	case errors.Is(err, service.ErrRemoteWrite):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

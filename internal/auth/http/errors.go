package http

import (
	"errors"
	"net/http"

	"github.com/patronhq/patron/internal/auth/service"
	"github.com/patronhq/patron/internal/auth/store"
	"github.com/patronhq/patron/pkg/httpx"
	"github.com/patronhq/patron/pkg/slogx"
)

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unmapped is a 500 with a generic body; the real error goes to the log only.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, "email_taken", "An account with this email already exists.")
	case errors.Is(err, service.ErrPasswordReused):
		httpx.WriteError(w, http.StatusBadRequest, "password_reused", "New password must differ from the current one.")
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefresh),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidOTP):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials.")
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrMFANotEnabled):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "Operation not allowed.")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Resource not found.")
	case errors.Is(err, service.ErrTooManyAttempts), errors.Is(err, service.ErrResendThrottled):
		httpx.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many attempts. Please try again later.")
	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Something went wrong.")
	}
}

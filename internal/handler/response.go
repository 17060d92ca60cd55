package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "unavailable", "message": "saving resume failed", "hint": "Check table storage permissions and connectivity"}
//
// "hint" is only present on 500s caused by configuration or backend
// problems, so an operator can tell a missing setting from a permission or
// connectivity failure without reading server logs.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/resume-builder/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`          // Machine-readable error type (e.g., "unauthorized")
	Message string `json:"message"`        // Human-readable description
	Hint    string `json:"hint,omitempty"` // Operator hint for backend failures
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body; once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; all we can do is log.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteError maps a domain error to the appropriate HTTP status code and
// sends it. It is also the auth.ErrorWriter used by the RequireIdentity
// middleware, so 401s look like every other error.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400
//	apperror.ErrUnauthorized → 401
//	apperror.ErrNotFound     → 404
//	apperror.ErrConflict     → 409
//	apperror.ErrUnavailable  → 500 with hint
//	anything else            → 500, details only in the log
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// NEVER expose internal error details to the client.
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"
	hint := ""

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
	case errors.Is(err, apperror.ErrUnavailable):
		errorType = "unavailable"
		hint = appErr.Hint
		// The cause goes to the log only; it may carry connection strings.
		slog.Error("backend unavailable",
			slog.String("message", appErr.Message),
			slog.String("hint", appErr.Hint),
			slog.Any("cause", appErr.Cause),
		)
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Hint:    hint,
	})
}

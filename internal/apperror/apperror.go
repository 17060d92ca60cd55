// Package apperror defines the error taxonomy shared by the store, service and
// HTTP layers.
//
// Every failure the API can report is one of a handful of sentinels. Lower
// layers wrap a sentinel in an *AppError (with a human-readable message and,
// for backend failures, an operator hint); the handler package is the single
// place where sentinels become HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("backend unavailable")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Hint    string // Optional: operator-facing hint (missing config, permissions...)
	Cause   error  // Optional: underlying failure, logged but never sent to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// either one.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized returns an AppError for a missing or rejected credential.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
		Cause:   cause,
	}
}

// Unavailable returns an AppError for a misconfigured or unreachable backend
// (table store, token verifier). HTTP handlers map this to 500 and pass the
// hint through so operators can tell missing configuration apart from
// permission or connectivity problems.
func Unavailable(message, hint string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
		Hint:    hint,
		Cause:   cause,
	}
}

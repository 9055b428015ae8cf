// Package apperr defines the error categories that cross the service
// boundary. Individual strategy failures are always recovered inside the
// orchestrator; callers only ever see one of the categories below, mapped to
// an HTTP status code by the function handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when the bearer credential is missing or
// cannot be verified.
var ErrUnauthorized = errors.New("unauthorized")

// ErrRateLimited is returned when the caller exceeds its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// ValidationError reports a malformed request or an unsupported file type.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ExhaustedError reports that every configured extraction strategy failed
// for a document. It names the last strategy attempted and its final error.
type ExhaustedError struct {
	LastStrategy string
	LastErr      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all extraction strategies exhausted; last strategy %q failed: %v", e.LastStrategy, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// PersistenceError wraps a metadata-store write failure. When it occurs after
// a successful extraction the extracted text is lost for this request and the
// caller must retry.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failure: %v", e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// HTTPStatus maps a service error onto the status code the handler returns.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		exhausted  *ExhaustedError
		persisted  *PersistenceError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &exhausted), errors.As(err, &persisted):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

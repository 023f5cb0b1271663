// Package errors defines the service's sentinel errors and the AppError
// wrapper that carries an HTTP status code alongside a caller-facing message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrChannelNotFound    = errors.New("channel not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrCatalogUnavailable = errors.New("channel catalog unavailable")
	ErrCacheDisabled      = errors.New("caching is disabled")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidInputf is shorthand for a 400 AppError wrapping ErrInvalidInput.
func InvalidInputf(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// Message returns the caller-facing message of err: the AppError message
// when present, otherwise the generic text for its status code.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return http.StatusText(HTTPStatusCode(err))
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrChannelNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrCatalogUnavailable), errors.Is(err, ErrCacheDisabled), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

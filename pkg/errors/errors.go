package errors

import (
	"errors"
	"net/http"
)

// Standard error types
var (
	ErrNotFound      = errors.New("resource not found")
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("missing configuration")
	ErrUpstream      = errors.New("upstream request failed")
	ErrStoreWrite    = errors.New("store write failed")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("timeout")
	ErrRateLimited   = errors.New("rate limited")
)

// AppError carries an error class plus the context needed at the HTTP
// boundary and by retry logic.
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the operation that produced this error is
// worth retrying
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// StatusCode extracts the HTTP status code for an error, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError

	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewValidationError creates an error for a client request missing required fields
func NewValidationError(message string) *AppError {
	return NewAppError(ErrValidation, message, http.StatusBadRequest, false)
}

// NewConfigurationError creates an error for a missing credential or setting.
// Configuration errors are never retryable; the affected adapter is skipped
// for the cycle instead.
func NewConfigurationError(message string) *AppError {
	return NewAppError(ErrConfiguration, message, http.StatusInternalServerError, false)
}

// NewUpstreamError creates an error for a failed external request
func NewUpstreamError(message string) *AppError {
	return NewAppError(ErrUpstream, message, http.StatusBadGateway, true)
}

// NewStoreWriteError creates an error for a failed local store write
func NewStoreWriteError(message string) *AppError {
	return NewAppError(ErrStoreWrite, message, http.StatusInternalServerError, true)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, false)
}

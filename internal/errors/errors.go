package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the generation client's admission control.
var (
	// ErrOverloaded is returned when the request queue is full and no
	// fallback provider is configured.
	ErrOverloaded = errors.New("request queue full and no fallback available")

	// ErrQueueTimeout is returned when a queued request exceeds its wait
	// bound and no fallback provider is configured.
	ErrQueueTimeout = errors.New("queued request timed out")
)

// DevError is the structured error type for DevMind. It carries a stable
// code, a category derived from the code, and the underlying cause.
type DevError struct {
	// Code is the unique error code (e.g., "ERR_302_BACKEND_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Capacity, Backend, ...).
	Category Category

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *DevError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DevError) Unwrap() error {
	return e.Cause
}

// Is matches DevErrors by code, enabling errors.Is().
func (e *DevError) Is(target error) bool {
	if t, ok := target.(*DevError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a DevError with the given code and message. Category and
// retryable flag are derived from the code.
func New(code string, message string, cause error) *DevError {
	return &DevError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DevError from an existing error, keeping its message.
func Wrap(code string, err error) *DevError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// BackendError creates a backend-unavailable error. Backend errors are
// retryable and trigger fallback chains rather than surfacing directly.
func BackendError(message string, cause error) *DevError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// ValidationError creates an invalid-input error. Rejected immediately,
// never retried.
func ValidationError(message string, cause error) *DevError {
	return New(ErrCodeInvalidInput, message, cause)
}

// UnsupportedError creates a typed error for operations a collaborator does
// not implement.
func UnsupportedError(message string) *DevError {
	return New(ErrCodeUnsupported, message, nil)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var de *DevError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetCode extracts the code from a DevError in err's chain.
// Returns empty string if none is found.
func GetCode(err error) string {
	var de *DevError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category from a DevError in err's chain.
func GetCategory(err error) Category {
	var de *DevError
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}

package errors

import (
	"fmt"
)

// FluxError is the structured error type for fluxrank. It provides context
// for error handling, logging, and user presentation.
type FluxError struct {
	// Code is the unique error code (e.g., "ERR_102_CONFIG_INVALID").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Lane, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if a future run may retry the operation.
	Retryable bool
}

// Error implements the error interface.
func (e *FluxError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FluxError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *FluxError) Is(target error) bool {
	if t, ok := target.(*FluxError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FluxError) WithDetail(key, value string) *FluxError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new FluxError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *FluxError {
	return &FluxError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a FluxError from an existing error.
// The error's message becomes the FluxError message.
func Wrap(code string, err error) *FluxError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *FluxError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// LaneError creates a lane-related error. Lane errors are recorded on the
// run's result, never escalated.
func LaneError(message string, cause error) *FluxError {
	return New(ErrCodeLaneFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *FluxError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FluxError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is a FluxError with the Retryable flag set.
func IsRetryable(err error) bool {
	if fe, ok := err.(*FluxError); ok {
		return fe.Retryable
	}
	return false
}

// Package domain provides the wire types and canonical error taxonomy for
// the evaluator.
package domain

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an evaluation failure.
type ErrorType string

const (
	// ErrorTypeValidation indicates malformed or missing required input.
	// Never retried.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeTimeout indicates the scoring delegate exceeded the
	// configured ceiling.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeDelegate indicates any other upstream failure: auth,
	// network, malformed response.
	ErrorTypeDelegate ErrorType = "delegate"
)

// EvalError is the canonical failure returned by the evaluation service.
// Every failure that crosses the service boundary is one of these; nothing
// escapes as an untyped fault.
type EvalError struct {
	// Type is the category of error.
	Type ErrorType `json:"type"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// RequestID correlates the failure with server-side logs.
	RequestID string `json:"request_id,omitempty"`

	// DurationMS is how long the invocation ran before failing.
	// Only populated for delegate failures.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode maps the error type to its response status.
func (e *EvalError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeDelegate:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WithRequestID attaches the per-invocation request ID.
func (e *EvalError) WithRequestID(id string) *EvalError {
	e.RequestID = id
	return e
}

// WithDuration attaches the elapsed time in milliseconds.
func (e *EvalError) WithDuration(ms int64) *EvalError {
	e.DurationMS = ms
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *EvalError {
	return &EvalError{Type: ErrorTypeValidation, Message: message}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *EvalError {
	return &EvalError{Type: ErrorTypeTimeout, Message: message}
}

// ErrDelegate creates a delegate error.
func ErrDelegate(message string) *EvalError {
	return &EvalError{Type: ErrorTypeDelegate, Message: message}
}

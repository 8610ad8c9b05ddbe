package operations

import (
	"fmt"
)

// ErrorType classifies an operation error. The server maps types to
// HTTP status codes, the CLI maps them to exit messages.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// OperationError is the error currency of the pipeline. Step failures
// are wrapped into one so callers can tell which step broke and why.
type OperationError struct {
	Type    ErrorType `json:"type"`
	Step    string    `json:"step,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError reports a request that cannot be executed.
func NewValidationError(step, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// NewExecutionError wraps a failure that occurred while a step ran.
func NewExecutionError(step string, cause error) *OperationError {
	msg := "step execution failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &OperationError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: msg,
		Cause:   cause,
	}
}

// NewCancellationError marks a step that was interrupted by
// cancellation or timeout.
func NewCancellationError(step string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "operation was cancelled",
	}
}

// GetErrorType returns the classification of err. Plain errors count
// as execution errors.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	if opErr, ok := err.(*OperationError); ok {
		return opErr.Type
	}
	return ErrorTypeExecution
}

// SkipError signals that a step has nothing to do for this request,
// either because an input it depends on never materialized or because
// the request disabled it. The manager marks such steps skipped
// instead of failed.
type SkipError struct {
	Reason string
}

// Error implements the error interface.
func (e *SkipError) Error() string {
	if e == nil || e.Reason == "" {
		return "step skipped"
	}
	return e.Reason
}

// Common operation errors.
var (
	// ErrOperationNotFound is returned when an operation id is unknown
	ErrOperationNotFound = &OperationError{
		Type:    ErrorTypeNotFound,
		Message: "operation not found",
	}

	// ErrOperationRunning is returned when results are requested from
	// an operation that has not finished yet
	ErrOperationRunning = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "operation is still running",
	}

	// ErrOperationNotRunning is returned when cancelling an operation
	// that already reached a terminal status
	ErrOperationNotRunning = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "operation is not running",
	}
)

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCategory represents the category of error
type ErrorCategory string

const (
	// ErrorCategorySubmission represents a submission the runner refused
	ErrorCategorySubmission ErrorCategory = "SUBMISSION"
	// ErrorCategoryConfiguration represents unknown tasks or bad parameter bags
	ErrorCategoryConfiguration ErrorCategory = "CONFIGURATION"
	// ErrorCategoryTask represents failures raised by a task body
	ErrorCategoryTask ErrorCategory = "TASK"
	// ErrorCategoryCancellation represents cancellation bookkeeping events
	ErrorCategoryCancellation ErrorCategory = "CANCELLATION"
	// ErrorCategoryIO represents file system errors raised by processors
	ErrorCategoryIO ErrorCategory = "IO"
)

// TaskError represents a structured error with context and troubleshooting information
type TaskError struct {
	Category        ErrorCategory
	Code            string
	Message         string
	Operation       string
	Context         map[string]interface{}
	Troubleshooting []string
	OriginalError   error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s-%s: %s", e.Category, e.Code, e.Message))

	if e.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nOperation: %s", e.Operation))
	}

	if len(e.Context) > 0 {
		sb.WriteString("\nContext:")
		for key, value := range e.Context {
			sb.WriteString(fmt.Sprintf("\n  %s: %v", key, value))
		}
	}

	if len(e.Troubleshooting) > 0 {
		sb.WriteString("\nTroubleshooting:")
		for i, step := range e.Troubleshooting {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	if e.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nUnderlying error: %v", e.OriginalError))
	}

	return sb.String()
}

// Unwrap returns the original error for error chain compatibility
func (e *TaskError) Unwrap() error {
	return e.OriginalError
}

// Is reports whether target is a TaskError of the same category and code.
// This lets callers compare against the package sentinels with errors.Is.
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// NewTaskError creates a new task error with the specified parameters
func NewTaskError(category ErrorCategory, code, message, operation string) *TaskError {
	return &TaskError{
		Category:        category,
		Code:            code,
		Message:         message,
		Operation:       operation,
		Context:         make(map[string]interface{}),
		Troubleshooting: []string{},
	}
}

// WithContext adds context information to the error
func (e *TaskError) WithContext(key string, value interface{}) *TaskError {
	e.Context[key] = value
	return e
}

// WithTroubleshooting adds troubleshooting steps to the error
func (e *TaskError) WithTroubleshooting(steps ...string) *TaskError {
	e.Troubleshooting = append(e.Troubleshooting, steps...)
	return e
}

// WithOriginalError adds the original error to the task error
func (e *TaskError) WithOriginalError(err error) *TaskError {
	e.OriginalError = err
	return e
}

// AsTaskError extracts a *TaskError from anywhere in the error chain
func AsTaskError(err error) (*TaskError, bool) {
	var taskErr *TaskError
	if stderrors.As(err, &taskErr) {
		return taskErr, true
	}
	return nil, false
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(code, message, operation string) *TaskError {
	return NewTaskError(ErrorCategoryConfiguration, code, message, operation)
}

// NewSubmissionError creates a new submission error
func NewSubmissionError(code, message, operation string) *TaskError {
	return NewTaskError(ErrorCategorySubmission, code, message, operation)
}

// NewIOError creates a new file system error
func NewIOError(code, message, operation string) *TaskError {
	return NewTaskError(ErrorCategoryIO, code, message, operation)
}

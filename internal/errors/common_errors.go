package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Common error codes
const (
	// Submission error codes
	CodeSubmissionBusy    = "001"
	CodeSubmissionStopped = "002"
	CodeSubmissionStarted = "003"

	// Configuration error codes
	CodeUnknownTask      = "001"
	CodeMissingParameter = "002"
	CodeInvalidParameter = "003"
	CodeInvalidCatalog   = "004"

	// Task error codes
	CodeTaskFailure = "001"
	CodeTaskPanic   = "002"

	// Cancellation codes
	CodeCancellationRace = "001"

	// IO error codes
	CodeReadInput   = "001"
	CodeWriteOutput = "002"
	CodeNoInput     = "003"
)

var (
	// ErrSubmissionRejected matches any refused submission via errors.Is
	ErrSubmissionRejected = &TaskError{Category: ErrorCategorySubmission, Code: CodeSubmissionBusy}

	// ErrRunnerStopped matches submissions made after the observer loop stopped
	ErrRunnerStopped = &TaskError{Category: ErrorCategorySubmission, Code: CodeSubmissionStopped}

	// ErrUnknownTask matches dispatch requests for an unregistered task id
	ErrUnknownTask = &TaskError{Category: ErrorCategoryConfiguration, Code: CodeUnknownTask}

	// ErrMissingParameter matches parameter bags lacking a required key
	ErrMissingParameter = &TaskError{Category: ErrorCategoryConfiguration, Code: CodeMissingParameter}

	// ErrTaskFailure matches failures raised by a task body
	ErrTaskFailure = &TaskError{Category: ErrorCategoryTask, Code: CodeTaskFailure}
)

// NewSubmissionRejectedError creates an error for a submission made while another task runs
func NewSubmissionRejectedError(requested, running string) *TaskError {
	return NewSubmissionError(CodeSubmissionBusy,
		fmt.Sprintf("Task '%s' rejected: '%s' is still running", requested, running),
		"Task submission").
		WithContext("requested", requested).
		WithContext("running", running).
		WithTroubleshooting(
			"Wait for the running task to finish",
			"Cancel the running task before starting a new one",
		)
}

// NewRunnerStoppedError creates an error for a submission made after shutdown began
func NewRunnerStoppedError(requested string) *TaskError {
	return NewSubmissionError(CodeSubmissionStopped,
		fmt.Sprintf("Task '%s' rejected: the application is shutting down", requested),
		"Task submission").
		WithContext("requested", requested)
}

// NewTaskAlreadyStartedError creates an error for submitting a task instance twice
func NewTaskAlreadyStartedError(name, state string) *TaskError {
	return NewSubmissionError(CodeSubmissionStarted,
		fmt.Sprintf("Task '%s' cannot be submitted: it is already %s", name, state),
		"Task submission").
		WithContext("task", name).
		WithContext("state", state).
		WithTroubleshooting(
			"Dispatch a new task instance instead of resubmitting a finished one",
		)
}

// NewUnknownTaskError creates an error for a task id that is not in the catalog
func NewUnknownTaskError(taskID string, known []string) *TaskError {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)
	return NewConfigurationError(CodeUnknownTask,
		fmt.Sprintf("Unknown task '%s'", taskID),
		"Task dispatch").
		WithContext("task", taskID).
		WithTroubleshooting(
			"Run 'geotask tasks' to list the available tasks",
			fmt.Sprintf("Known tasks: %s", strings.Join(sorted, ", ")),
		)
}

// NewMissingParameterError creates an error for required keys absent from a parameter bag
func NewMissingParameterError(taskID string, missing []string) *TaskError {
	return NewConfigurationError(CodeMissingParameter,
		fmt.Sprintf("Task '%s' is missing required parameters: %s", taskID, strings.Join(missing, ", ")),
		"Task dispatch").
		WithContext("task", taskID).
		WithContext("missing", missing).
		WithTroubleshooting(
			"Pass each parameter with --param key=value",
			"Run 'geotask tasks' to see the required parameters of every task",
		)
}

// NewInvalidParameterError creates an error for a parameter bag that cannot be decoded
func NewInvalidParameterError(taskID string, originalErr error) *TaskError {
	return NewConfigurationError(CodeInvalidParameter,
		fmt.Sprintf("Task '%s' received parameters of the wrong type", taskID),
		"Task dispatch").
		WithContext("task", taskID).
		WithOriginalError(originalErr)
}

// NewInvalidCatalogError creates an error for a catalog entry bound to an unknown processor
func NewInvalidCatalogError(taskID, processor string) *TaskError {
	return NewConfigurationError(CodeInvalidCatalog,
		fmt.Sprintf("Task '%s' refers to unknown processor '%s'", taskID, processor),
		"Catalog loading").
		WithContext("task", taskID).
		WithContext("processor", processor).
		WithTroubleshooting(
			"Check the 'tasks' section of the configuration file",
		)
}

// NewTaskFailureError wraps an error returned by a task body
func NewTaskFailureError(taskName string, originalErr error) *TaskError {
	return NewTaskError(ErrorCategoryTask, CodeTaskFailure,
		fmt.Sprintf("Task '%s' failed", taskName),
		"Task execution").
		WithContext("task", taskName).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Check the operational log for details",
			"Verify the input files are readable and well formed",
		)
}

// NewTaskPanicError converts a recovered panic into a task failure
func NewTaskPanicError(taskName string, recovered interface{}) *TaskError {
	return NewTaskError(ErrorCategoryTask, CodeTaskPanic,
		fmt.Sprintf("Task '%s' crashed: %v", taskName, recovered),
		"Task execution").
		WithContext("task", taskName).
		WithContext("panic", fmt.Sprint(recovered))
}

// NewCancellationRaceError describes a confirmation that arrived after the task finished
func NewCancellationRaceError(taskName string, state string) *TaskError {
	return NewTaskError(ErrorCategoryCancellation, CodeCancellationRace,
		fmt.Sprintf("Task '%s' already %s before the cancellation was confirmed", taskName, state),
		"Cancellation confirmation").
		WithContext("task", taskName).
		WithContext("state", state)
}

// NewReadInputError creates an error for unreadable input files
func NewReadInputError(path string, originalErr error) *TaskError {
	return NewIOError(CodeReadInput,
		fmt.Sprintf("Failed to read input file '%s'", path),
		"Input reading").
		WithContext("path", path).
		WithOriginalError(originalErr)
}

// NewWriteOutputError creates an error for output files that cannot be written
func NewWriteOutputError(path string, originalErr error) *TaskError {
	return NewIOError(CodeWriteOutput,
		fmt.Sprintf("Failed to write output file '%s'", path),
		"Output writing").
		WithContext("path", path).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Check that the output directory exists and is writable",
		)
}

// NewNoInputError creates an error for folders without suitable input files
func NewNoInputError(folder string) *TaskError {
	return NewIOError(CodeNoInput,
		fmt.Sprintf("Folder '%s' contains no suitable files", folder),
		"Input discovery").
		WithContext("folder", folder)
}

// GetErrorSeverity returns the severity level of an error
func GetErrorSeverity(err error) string {
	if taskErr, ok := AsTaskError(err); ok {
		switch taskErr.Category {
		case ErrorCategorySubmission, ErrorCategoryCancellation:
			return "INFO"
		case ErrorCategoryConfiguration:
			return "WARNING"
		case ErrorCategoryTask, ErrorCategoryIO:
			return "ERROR"
		default:
			return "ERROR"
		}
	}
	return "ERROR"
}

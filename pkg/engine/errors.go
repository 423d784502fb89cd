package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorClass represents the classification of an error for retry and abort decisions.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: a file locked by another process, a busy device.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error that aborts the deployment.
	// Examples: permission denied, disk-space floor violation, non-zero script exit.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the file, directory or script path that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Resource != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (path=%s, operation=%s)", msg, e.Resource, e.Operation)
	} else if e.Resource != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Resource)
	}
	if inner := e.unwrapMessage(); inner != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Class, msg, inner)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// Classification returns the class and code, for metrics labelling.
func (e *EngineError) Classification() (class, code string) {
	return string(e.Class), e.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Code:    ErrCodeIOTransient,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// NewScriptExecutionError reports a script that exited with a non-zero code.
func NewScriptExecutionError(scriptPath string, exitCode int) *EngineError {
	return NewPermanentError(
		fmt.Sprintf("script returned non-zero exit code: %d", exitCode), nil).
		WithCode(ErrCodeScriptFailed).
		WithResource(scriptPath).
		WithOperation("execute").
		WithDetail("script", scriptPath).
		WithDetail("exit_code", exitCode)
}

// NewEngineSelectionError reports that no script engine supports a script's extension.
func NewEngineSelectionError(scriptPath, extension string) *EngineError {
	return NewPermanentError(
		fmt.Sprintf("no script engine on this platform supports %q scripts", extension), nil).
		WithCode(ErrCodeEngineSelection).
		WithResource(scriptPath).
		WithDetail("extension", extension)
}

// WithResource adds path context to an error.
func (e *EngineError) WithResource(path string) *EngineError {
	e.Resource = path
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// HasCode reports whether err carries the given error code anywhere in its chain.
func HasCode(err error, code string) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ExitCodeOf extracts the script exit code from a script execution failure.
func ExitCodeOf(err error) (int, bool) {
	var e *EngineError
	if !errors.As(err, &e) || e.Code != ErrCodeScriptFailed {
		return 0, false
	}
	switch v := e.Details["exit_code"].(type) {
	case int:
		return v, true
	case string:
		code, convErr := strconv.Atoi(v)
		return code, convErr == nil
	}
	return 0, false
}

// ConventionError records which pipeline step failed.
type ConventionError struct {
	// Index is the zero-based position of the convention in the pipeline.
	Index int

	// Convention is the name of the failing convention.
	Convention string

	// Err is the failure raised by the convention.
	Err error
}

// Error implements the error interface.
func (e *ConventionError) Error() string {
	return fmt.Sprintf("convention %q (step %d) failed: %v", e.Convention, e.Index+1, e.Err)
}

// Unwrap returns the convention's failure.
func (e *ConventionError) Unwrap() error {
	return e.Err
}

// Common error codes.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeIOTransient       = "IO_TRANSIENT"
	ErrCodeIOPermanent       = "IO_PERMANENT"
	ErrCodeRetriesExhausted  = "RETRIES_EXHAUSTED"
	ErrCodeInsufficientSpace = "INSUFFICIENT_DISK_SPACE"
	ErrCodeScriptFailed      = "SCRIPT_FAILED"
	ErrCodeScriptLaunch      = "SCRIPT_LAUNCH_FAILED"
	ErrCodeEngineSelection   = "ENGINE_SELECTION"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

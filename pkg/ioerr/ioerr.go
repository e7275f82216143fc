// Package ioerr defines the stable error-code vocabulary shared by the
// tool manager, normalizer, loop and tracer so callers can use errors.As
// instead of matching on string messages.
package ioerr

import "fmt"

// Code is a stable error-kind identifier. Codes are never renamed once
// shipped; new codes are additive.
type Code string

const (
	CodePermissionDenied      Code = "PERMISSION_DENIED"
	CodePathDenied            Code = "PATH_DENIED"
	CodeInvalidCwd            Code = "INVALID_CWD"
	CodeShellTimeout          Code = "SHELL_TIMEOUT"
	CodeCommandNotFound       Code = "COMMAND_NOT_FOUND"
	CodeNonZeroExit           Code = "NON_ZERO_EXIT"
	CodeSchemaValidationFail  Code = "SCHEMA_VALIDATION_FAILED"
	CodeTodoListNotFound      Code = "TODO_LIST_NOT_FOUND"
	CodeTodoItemNotFound      Code = "TODO_ITEM_NOT_FOUND"
	CodeExecutionError        Code = "EXECUTION_ERROR"
	CodeToolNotFound          Code = "TOOL_NOT_FOUND"
	CodeHardBudget            Code = "hard_budget"
	CodeMaxIterations         Code = "max_iterations"
	CodeLoopDetected          Code = "loop_detected"
	CodeAbortSignal           Code = "abort_signal"
	CodeNoToolCalls           Code = "no_tool_calls"
	CodeReportComplete        Code = "report_complete"
	CodeIterationError        Code = "iteration_error"
)

// Error is the structured error every tool-facing and loop-facing
// failure in this module is represented as. Every error carries a
// stable code, a human message, whether retrying makes sense, and an
// optional hint telling the model what to do differently next turn.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Hint      string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a non-retryable Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a non-retryable Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithHint returns a copy of the error with Hint set.
func (e *Error) WithHint(hint string) *Error {
	cp := *e
	cp.Hint = hint
	return &cp
}

// WithRetryable returns a copy of the error with Retryable set.
func (e *Error) WithRetryable(retryable bool) *Error {
	cp := *e
	cp.Retryable = retryable
	return &cp
}

// Wrap builds an Error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Code == code
}

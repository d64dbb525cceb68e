// Package corerr defines the caller-facing error taxonomy for the query
// orchestration core: QueryTooLong, UnknownIntent, Timeout, UpstreamFailure,
// and InternalError. Every stage boundary that can fail a turn returns (or
// wraps) one of these so the EntryRouter and transport layer can render a
// stable error code without inspecting stage internals.
package corerr

import "fmt"

// Code is one of the five caller-facing error codes.
type Code string

const (
	// QueryTooLong indicates the utterance exceeded the Analyzer's length limit.
	QueryTooLong Code = "QueryTooLong"
	// UnknownIntent indicates the Planner refused a NormalizedQuery whose
	// intent_type is "unknown".
	UnknownIntent Code = "UnknownIntent"
	// Timeout indicates a per-call or per-turn deadline expired.
	Timeout Code = "Timeout"
	// UpstreamFailure indicates a tool, model, or store call failed.
	UpstreamFailure Code = "UpstreamFailure"
	// InternalError indicates a defect in pipeline control flow itself.
	InternalError Code = "InternalError"
)

// Error is the structured error type surfaced across stage boundaries. It
// carries a stable Code, a human message, and an optional cause plus
// structured payload (for example, which tool failed).
type Error struct {
	code    Code
	message string
	tool    string
	cause   error
}

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap constructs an Error with the given code, message, and underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// WithTool annotates the error with the tool name that failed, for
// UpstreamFailure errors raised by the Executor.
func (e *Error) WithTool(tool string) *Error {
	e.tool = tool
	return e
}

// Code returns the stable caller-facing error code.
func (e *Error) Code() Code { return e.code }

// Tool returns the tool name that failed, or "" when not applicable.
func (e *Error) Tool() string { return e.tool }

// Cause returns the wrapped underlying error, if any.
func (e *Error) Cause() error { return e.cause }

func (e *Error) Error() string {
	if e.tool != "" {
		return fmt.Sprintf("%s: %s (tool=%s)", e.code, e.message, e.tool)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.code, e.message, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the Code from err when it is (or wraps) a *Error, otherwise
// returns InternalError. Transport layers use this to render a stable code
// for any error that escapes the pipeline.
func CodeOf(err error) Code {
	var e *Error
	if asError(err, &e) {
		return e.code
	}
	return InternalError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

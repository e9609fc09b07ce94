// Package errors provides structured error handling for the ODC codec.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeFormat represents a malformed or truncated frame. A source
	// that produced a format error is unrecoverable and must not be reused.
	ErrorTypeFormat ErrorType = "format"
	// ErrorTypeType represents an encode-time value incompatible with the
	// forced or inferred column datatype.
	ErrorTypeType ErrorType = "type"
	// ErrorTypeKey represents a request for a column that is absent where
	// absence cannot be tolerated.
	ErrorTypeKey ErrorType = "key"
	// ErrorTypeIO represents an underlying byte source failure, propagated
	// without internal retries.
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeConfig represents invalid operation options, reported before
	// any encoding or decoding begins.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInternal represents internal invariant violations.
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithColumn records the offending column name, used by type and key errors.
func (e *Error) WithColumn(name string) *Error {
	return e.WithDetail("column", name)
}

// Column returns the column name attached to the error, if any.
func (e *Error) Column() string {
	if e.Details == nil {
		return ""
	}
	name, _ := e.Details["column"].(string)
	return name
}

// New creates a new error with the given type and message.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack captures the current call stack.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

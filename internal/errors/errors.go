package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ProtocolError indicates the language server returned a structured error
	ProtocolError ErrorCode = "PROTOCOL_ERROR"
	// CapabilityMissing indicates a required server capability is absent or disabled
	CapabilityMissing ErrorCode = "CAPABILITY_MISSING"
	// IndexingTimeout indicates the still-indexing retry budget was exhausted
	IndexingTimeout ErrorCode = "INDEXING_TIMEOUT"
	// UnsupportedShape indicates the server returned a response shape the pipeline cannot use
	UnsupportedShape ErrorCode = "UNSUPPORTED_SHAPE"
	// ProcessFailed indicates the language server process could not be spawned or died
	ProcessFailed ErrorCode = "PROCESS_FAILED"
	// ConfigInvalid indicates invalid configuration
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Error is a structured error carrying a stable code alongside the message.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// New creates a new Error
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new Error with a formatted message
func Newf(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), cause)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the ErrorCode carried by err, or InternalError if err
// carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures surfaced by the encoder and the session.
type ErrorCode string

// Error codes.
const (
	ErrInvalidParameter   ErrorCode = "INVALID_PARAMETER"
	ErrDeviceError        ErrorCode = "DEVICE_ERROR"
	ErrTransportFailure   ErrorCode = "TRANSPORT_FAILURE"
	ErrSessionInvalid     ErrorCode = "SESSION_INVALID"
	ErrSequenceNotArmed   ErrorCode = "SEQUENCE_NOT_ARMED"
	ErrSequenceActive     ErrorCode = "SEQUENCE_ACTIVE"
	ErrUnexpectedResponse ErrorCode = "UNEXPECTED_RESPONSE"
)

// Error is the single error type of the command layer.
type Error struct {
	Code    ErrorCode `json:"code"`
	Command string    `json:"command,omitempty"` // wire command attempted, if any
	Message string    `json:"message"`
	Raw     string    `json:"raw,omitempty"` // device line, verbatim
	Cause   error     `json:"-"`
}

// NewError creates an error with the given code.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewDeviceError wraps a line the firmware reported as an error.
func NewDeviceError(command, raw, message string) *Error {
	return &Error{
		Code:    ErrDeviceError,
		Command: command,
		Message: message,
		Raw:     raw,
	}
}

func invalidf(format string, args ...any) *Error {
	return &Error{
		Code:    ErrInvalidParameter,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Command != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Code, e.Command, e.Message)
	}
	if e.Raw != "" && e.Raw != e.Message {
		msg += fmt.Sprintf(" (device: %q)", e.Raw)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode checks if the error matches a specific code.
func (e *Error) HasCode(code ErrorCode) bool {
	return e.Code == code
}

// WithCommand returns a copy of the error annotated with the attempted command.
func (e *Error) WithCommand(command string) *Error {
	cp := *e
	cp.Command = command
	return &cp
}

// IsCode reports whether err, or any error it wraps, is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

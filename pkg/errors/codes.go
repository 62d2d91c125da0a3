package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a specific failure condition in puppetizer. Codes for
// fatal conditions double as the supervisor's process exit code, so every
// failure category the supervisor can die from has its own value.
type ErrorCode int

const (
	ExitOK ErrorCode = 0

	ErrCodeUnknown       ErrorCode = 1
	ErrCodeConfigInvalid ErrorCode = 2

	// Fatal/startup
	ErrCodeSpawnFailed  ErrorCode = 3
	ErrCodeSocketFailed ErrorCode = 4
	ErrCodeMuxFailed    ErrorCode = 5 // multiplexer setup
	ErrCodeHaltWorker   ErrorCode = 6 // halt worker creation

	// Fatal/loop
	ErrCodeMuxWait         ErrorCode = 7 // multiplexer wait
	ErrCodeBadSignalRecord ErrorCode = 8 // malformed signal/command record
	ErrCodeBootFailed      ErrorCode = 9 // bootstrap exited non-zero
)

// SupervisorError is a structured error carrying an error code, the operation
// being performed, and the underlying cause.
type SupervisorError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *SupervisorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *SupervisorError) Unwrap() error {
	return e.Err
}

// New creates a new SupervisorError with the specified code, operation,
// message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &SupervisorError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// Code extracts the ErrorCode from err. Errors that are not SupervisorError
// map to ErrCodeUnknown; a nil error maps to ExitOK.
func Code(err error) ErrorCode {
	if err == nil {
		return ExitOK
	}
	var se *SupervisorError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeUnknown
}

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSupervisorError_Error(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "Startup", "invalid config file", nil)
	expected := "[2] Startup: invalid config file"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}

	cause := errors.New("file not found")
	errWithCause := New(ErrCodeConfigInvalid, "Startup", "invalid config file", cause)
	expectedWithCause := "[2] Startup: invalid config file (cause: file not found)"
	if errWithCause.Error() != expectedWithCause {
		t.Errorf("Expected %q, got %q", expectedWithCause, errWithCause.Error())
	}
}

func TestSupervisorError_Unwrap(t *testing.T) {
	cause := errors.New("file not found")
	err := New(ErrCodeSocketFailed, "Listen", "bind failed", cause)

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Expected cause %v, got %v", cause, unwrapped)
	}

	errNoCause := New(ErrCodeSocketFailed, "Listen", "bind failed", nil)
	if errors.Unwrap(errNoCause) != nil {
		t.Errorf("Expected nil cause, got %v", errors.Unwrap(errNoCause))
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != ExitOK {
		t.Errorf("Expected ExitOK for nil error, got %v", Code(nil))
	}

	err := New(ErrCodeBootFailed, "Boot", "bootstrap exited non-zero", nil)
	if Code(err) != ErrCodeBootFailed {
		t.Errorf("Expected ErrCodeBootFailed, got %v", Code(err))
	}

	wrapped := fmt.Errorf("loop: %w", err)
	if Code(wrapped) != ErrCodeBootFailed {
		t.Errorf("Expected ErrCodeBootFailed through wrapping, got %v", Code(wrapped))
	}

	if Code(errors.New("plain")) != ErrCodeUnknown {
		t.Errorf("Expected ErrCodeUnknown for plain error, got %v", Code(errors.New("plain")))
	}
}

func TestErrorCodesAreDistinct(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeUnknown, ErrCodeConfigInvalid, ErrCodeSpawnFailed,
		ErrCodeSocketFailed, ErrCodeMuxFailed, ErrCodeHaltWorker,
		ErrCodeMuxWait, ErrCodeBadSignalRecord, ErrCodeBootFailed,
	}
	seen := make(map[ErrorCode]bool)
	for _, c := range codes {
		if c == ExitOK {
			t.Errorf("Code %v collides with the success exit code", c)
		}
		if seen[c] {
			t.Errorf("Duplicate error code %v", c)
		}
		seen[c] = true
	}
}

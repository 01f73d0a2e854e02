// Package crescenterr defines the error taxonomy shared by the supervisor,
// its client helpers, and the attach TUI. Each sentinel maps to a distinct
// user-visible message, per spec.
package crescenterr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Err) to attach context;
// callers compare with errors.Is.
var (
	ErrApplicationNotFound     = errors.New("application not found")
	ErrApplicationNotRunning   = errors.New("application not running")
	ErrApplicationAlreadyRun   = errors.New("application already running")
	ErrNameContainsWhitespace  = errors.New("name contains whitespace")
	ErrExecutablePathNotFound  = errors.New("executable path not found")
	ErrExecutablePathNotGiven  = errors.New("executable path not provided")
	ErrSocketBind              = errors.New("failed to bind control socket")
	ErrSocketConnect           = errors.New("failed to connect to control socket")
	ErrSubprocessFailedToStart = errors.New("subprocess failed to start")
	ErrEmptyCommand            = errors.New("command is empty")
)

// SignalErrorKind classifies a failed signal delivery.
type SignalErrorKind int

const (
	SignalErrorUnknown SignalErrorKind = iota
	SignalErrorPermission
	SignalErrorNoSuchProcess
	SignalErrorInvalid
)

// SignalError wraps a failed send_signal call with its classified kind.
type SignalError struct {
	Kind SignalErrorKind
	Code int // raw errno, valid when Kind == SignalErrorUnknown
	Err  error
}

func (e *SignalError) Error() string {
	switch e.Kind {
	case SignalErrorPermission:
		return "signal delivery denied: permission"
	case SignalErrorNoSuchProcess:
		return "signal delivery failed: no such process"
	case SignalErrorInvalid:
		return "signal delivery failed: invalid signal"
	default:
		return fmt.Sprintf("signal delivery failed: errno %d", e.Code)
	}
}

func (e *SignalError) Unwrap() error { return e.Err }

// Message renders err the way client commands print failures: a single
// line prefixed "Error:" as required by spec.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + err.Error()
}

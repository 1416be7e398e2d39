package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSelector = errors.New("invalid selector")
	ErrSessionCrashed  = errors.New("application under test crashed")
	ErrNotReady        = errors.New("session not ready")
	ErrStaleElement    = errors.New("stale element handle")
)

// ErrorTier classifies a failure for reporting and propagation
type ErrorTier string

const (
	TierInfrastructure ErrorTier = "infrastructure" // Aborts the remaining suite
	TierScenario       ErrorTier = "scenario"       // Fails the current scenario only
	TierAssertion      ErrorTier = "assertion"      // Ordinary test failure
)

// StartupError means the application never reached Ready. Fatal to the suite.
type StartupError struct {
	Binary  string
	Elapsed time.Duration
	Err     error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("application %s failed to start after %v: %v", e.Binary, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// TimeoutError is a wait that ran out of time. LastErr is the last swallowed
// poll error, kept for diagnosis only.
type TimeoutError struct {
	Description string
	Timeout     time.Duration
	Elapsed     time.Duration
	Attempts    int
	LastErr     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %v waiting for %s (%d attempts)", e.Elapsed.Round(time.Millisecond), e.Description, e.Attempts)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last error: %v", e.LastErr)
	}
	return msg
}

// NotFoundError is a selector that resolved to zero elements where one was required
type NotFoundError struct {
	Selector Selector
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no element matches selector %q", string(e.Selector))
}

// ShutdownError reports a stop that could not complete gracefully.
// The session still ends Stopped; this is logged, not fatal.
type ShutdownError struct {
	Pid    int
	Forced bool
	Err    error
}

func (e *ShutdownError) Error() string {
	if e.Forced {
		return fmt.Sprintf("process %d did not exit gracefully, forced kill used: %v", e.Pid, e.Err)
	}
	return fmt.Sprintf("process %d shutdown failed: %v", e.Pid, e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }

// CaptureError is a failed artifact capture. Never fails a scenario.
type CaptureError struct {
	TestName string
	Label    string
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %q for %s failed: %v", e.Label, e.TestName, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// LifecycleError is an operation attempted in a session state that does not allow it
type LifecycleError struct {
	Op    string
	State SessionState
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: session is %s", e.Op, e.State)
}

func (e *LifecycleError) Unwrap() error {
	if e.State == SessionCrashed {
		return ErrSessionCrashed
	}
	return ErrNotReady
}

// AssertionError is a failed expectation inside a scenario body
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string { return e.Message }

// Tier classifies err. Unknown errors fail only the current scenario.
func Tier(err error) ErrorTier {
	var startupErr *StartupError
	var lifecycleErr *LifecycleError
	var assertErr *AssertionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &startupErr), errors.As(err, &lifecycleErr), errors.Is(err, ErrSessionCrashed):
		return TierInfrastructure
	case errors.As(err, &assertErr):
		return TierAssertion
	default:
		return TierScenario
	}
}

// IsInfrastructure reports whether err should abort the remaining suite
func IsInfrastructure(err error) bool {
	return Tier(err) == TierInfrastructure
}

package models

import "time"

// SessionState is the lifecycle state of one application-under-test instance
type SessionState string

const (
	SessionStarting SessionState = "starting"
	SessionReady    SessionState = "ready"
	SessionRunning  SessionState = "running" // Ready while scenarios are executing
	SessionStopping SessionState = "stopping"
	SessionStopped  SessionState = "stopped"
	SessionCrashed  SessionState = "crashed"
)

// Usable reports whether selectors may be resolved in this state
func (s SessionState) Usable() bool {
	return s == SessionReady || s == SessionRunning
}

// SessionTransition records one state change for diagnostics
type SessionTransition struct {
	From   SessionState `json:"from"`
	To     SessionState `json:"to"`
	At     time.Time    `json:"at"`
	Reason string       `json:"reason,omitempty"`
}

package models

import "time"

// WaitSpec describes a single bounded wait. It is consumed once and never stored.
type WaitSpec struct {
	Description string        // Human readable predicate description, used in TimeoutError
	Timeout     time.Duration // Total budget for the wait
	Interval    time.Duration // Poll cadence (clamped to the waiter minimum)
}

// WithDescription returns a copy with a new description
func (w WaitSpec) WithDescription(desc string) WaitSpec {
	w.Description = desc
	return w
}

// WithTimeout returns a copy with a new timeout; zero keeps the current one
func (w WaitSpec) WithTimeout(timeout time.Duration) WaitSpec {
	if timeout > 0 {
		w.Timeout = timeout
	}
	return w
}

package interfaces

import (
	"time"

	"github.com/ternarybob/smoke/internal/models"
)

// WaitObserver receives the outcome of every bounded wait
type WaitObserver interface {
	WaitCompleted(description string, attempts int, elapsed time.Duration, err error)
}

// RunObserver receives scenario and capture outcomes
type RunObserver interface {
	ScenarioCompleted(name string, outcome models.Outcome, elapsed time.Duration)
	CaptureCompleted(label string, err error)
}

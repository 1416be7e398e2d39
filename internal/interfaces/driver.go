package interfaces

import (
	"context"

	"github.com/ternarybob/smoke/internal/models"
)

// Driver - automation channel into a running application.
// Every call resolves against the live UI; nothing is cached between calls.
type Driver interface {
	// QueryAll returns every element matching sel in document order (possibly none)
	QueryAll(ctx context.Context, sel models.Selector) ([]models.ElementHandle, error)

	// Click dispatches a pointer click on el. Stale handles fail with models.ErrStaleElement.
	Click(ctx context.Context, el models.ElementHandle) error

	// TypeText sends text as key events to the focused element
	TypeText(ctx context.Context, text string) error

	// KeyPress sends a single chord to the focused element
	KeyPress(ctx context.Context, chord models.KeyChord) error

	// Screenshot returns a PNG of the current window
	Screenshot(ctx context.Context) ([]byte, error)

	// Snapshot returns the serialized DOM of the current window
	Snapshot(ctx context.Context) (string, error)

	// Shutdown asks the application to quit on its own
	Shutdown(ctx context.Context) error

	// Close releases the automation channel without touching the process
	Close() error
}

// DriverProvider hands out the current driver, or a *models.LifecycleError
// when the session is not in a usable state
type DriverProvider interface {
	Driver() (Driver, error)
}

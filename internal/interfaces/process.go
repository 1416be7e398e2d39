package interfaces

import (
	"context"

	"github.com/ternarybob/smoke/internal/models"
)

// Process is a launched application under test, exclusively owned by one session
type Process interface {
	Pid() int

	// Wait blocks until the process exits. Called once, by the session watcher.
	Wait() error

	// Terminate requests a graceful exit (SIGTERM on unix)
	Terminate() error

	// Kill forcibly ends the process and its children
	Kill() error

	// DebugEndpoint is the DevTools base URL, e.g. http://127.0.0.1:9222
	DebugEndpoint() string
}

// Launcher starts the application under test
type Launcher interface {
	Launch(ctx context.Context, spec models.LaunchSpec) (Process, error)
}

// Connector attaches an automation driver to a launched process
type Connector interface {
	Connect(ctx context.Context, proc Process) (Driver, error)
}

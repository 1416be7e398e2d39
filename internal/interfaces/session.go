package interfaces

import (
	"context"

	"github.com/ternarybob/smoke/internal/models"
)

// Session is the application-under-test lifecycle as the runner drives it
type Session interface {
	DriverProvider

	Start(ctx context.Context) error
	MarkRunning() error
	Stop(ctx context.Context) error
	State() models.SessionState
	Transitions() []models.SessionTransition

	// Done is closed when the process exits; nil before Start
	Done() <-chan struct{}
}

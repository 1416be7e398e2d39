package interfaces

import (
	"context"

	"github.com/ternarybob/smoke/internal/models"
)

// ArtifactStore - append-only index of captured artifacts
type ArtifactStore interface {
	// Append records a new artifact. Appending an existing key is an error.
	Append(ctx context.Context, artifact *models.Artifact) error
	ListByTest(ctx context.Context, runID, testName string) ([]models.Artifact, error)
	ListByRun(ctx context.Context, runID string) ([]models.Artifact, error)
	Close() error
}

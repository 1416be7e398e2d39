package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
)

// ArtifactStorage implements interfaces.ArtifactStore on badgerhold.
// Records are keyed by run, test name and sequence and never updated.
type ArtifactStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArtifactStorage creates an artifact index on db
func NewArtifactStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArtifactStore {
	return &ArtifactStorage{
		db:     db,
		logger: logger,
	}
}

// Append inserts artifact. An existing key is never overwritten.
func (s *ArtifactStorage) Append(ctx context.Context, artifact *models.Artifact) error {
	if artifact.TestName == "" {
		return fmt.Errorf("artifact has no test name")
	}
	key := artifact.Key()

	err := s.db.Store().Insert(key, artifact)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf("artifact %s already recorded", key)
	}
	if err != nil {
		return fmt.Errorf("failed to index artifact %s: %w", key, err)
	}

	s.logger.Trace().
		Str("key", key).
		Str("label", artifact.Label).
		Msg("Artifact indexed")
	return nil
}

// ListByTest returns a test's artifacts in sequence order
func (s *ArtifactStorage) ListByTest(ctx context.Context, runID, testName string) ([]models.Artifact, error) {
	var artifacts []models.Artifact
	query := badgerhold.Where("RunID").Eq(runID).Index("RunID").
		And("TestName").Eq(testName).
		SortBy("Seq")
	if err := s.db.Store().Find(&artifacts, query); err != nil {
		return nil, fmt.Errorf("failed to list artifacts for %s: %w", testName, err)
	}
	return artifacts, nil
}

// ListByRun returns every artifact of a run ordered by test then sequence
func (s *ArtifactStorage) ListByRun(ctx context.Context, runID string) ([]models.Artifact, error) {
	var artifacts []models.Artifact
	query := badgerhold.Where("RunID").Eq(runID).Index("RunID").SortBy("TestName", "Seq")
	if err := s.db.Store().Find(&artifacts, query); err != nil {
		return nil, fmt.Errorf("failed to list artifacts for run %s: %w", runID, err)
	}
	return artifacts, nil
}

// Close closes the underlying database
func (s *ArtifactStorage) Close() error {
	return s.db.Close()
}

package common

import (
	"time"

	"github.com/google/uuid"
)

// NewRunID generates a run identifier that sorts by start time.
// Format: 20060102-150405-<8 hex>
func NewRunID(now time.Time) string {
	return now.Format("20060102-150405") + "-" + uuid.New().String()[:8]
}

// NewArtifactID generates a unique artifact ID with the "art_" prefix
func NewArtifactID() string {
	return "art_" + uuid.New().String()
}

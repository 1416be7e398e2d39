package models

import (
	"fmt"
	"time"
)

// ArtifactKind identifies the type of file stored for an artifact
type ArtifactKind string

const (
	ArtifactScreenshot ArtifactKind = "screenshot"
	ArtifactDOM        ArtifactKind = "dom"
	ArtifactMarkdown   ArtifactKind = "markdown"
)

// ArtifactFile is one file written for a capture
type ArtifactFile struct {
	Kind ArtifactKind `json:"kind"`
	Path string       `json:"path"`
	Size int64        `json:"size"`
}

// Artifact is a named, timestamped snapshot of UI state.
// Records are append-only and keyed by test name and sequence number.
type Artifact struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id" badgerhold:"index"`
	TestName  string         `json:"test_name" badgerhold:"index"`
	Seq       int            `json:"seq"`
	Label     string         `json:"label"`
	Timestamp time.Time      `json:"timestamp"`
	Files     []ArtifactFile `json:"files"`
}

// Key returns the stable index key for this artifact
func (a Artifact) Key() string {
	return ArtifactKey(a.RunID, a.TestName, a.Seq)
}

// ArtifactKey builds the index key for a test identity and sequence number
func ArtifactKey(runID, testName string, seq int) string {
	return fmt.Sprintf("%s/%s/%04d", runID, testName, seq)
}

// PrimaryPath returns the screenshot path if present, otherwise the first file
func (a Artifact) PrimaryPath() string {
	for _, f := range a.Files {
		if f.Kind == ArtifactScreenshot {
			return f.Path
		}
	}
	if len(a.Files) > 0 {
		return a.Files[0].Path
	}
	return ""
}

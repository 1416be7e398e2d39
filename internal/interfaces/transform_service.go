package interfaces

// TransformService renders DOM snapshots as Markdown for artifacts
type TransformService interface {
	SnapshotToMarkdown(html string) (string, error)
}

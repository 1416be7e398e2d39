package transform

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/interfaces"
)

var _ interfaces.TransformService = (*Service)(nil)

// noiseSelectors are removed before conversion; they carry no visible text
const noiseSelectors = "script, style, noscript, template, svg, link, meta"

// Service turns DOM snapshots into readable Markdown for artifacts
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// SnapshotToMarkdown converts a serialized DOM into Markdown. Conversion
// problems fall back to the visible text, so a snapshot always yields
// something readable.
func (s *Service) SnapshotToMarkdown(html string) (string, error) {
	if err := ValidateHTML(html); err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse snapshot: %w", err)
	}
	doc.Find(noiseSelectors).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	converter := md.NewConverter("", true, nil)
	converted := converter.Convert(body)

	if strings.TrimSpace(converted) == "" {
		s.logger.Debug().
			Int("html_length", len(html)).
			Msg("Markdown conversion produced empty output, using text fallback")
		return visibleText(body), nil
	}

	s.logger.Trace().
		Int("markdown_length", len(converted)).
		Int("html_length", len(html)).
		Msg("Snapshot converted to markdown")

	return converted, nil
}

// visibleText collapses the selection's text nodes into lines
func visibleText(sel *goquery.Selection) string {
	lines := []string{}
	for _, line := range strings.Split(sel.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ValidateHTML checks if the input looks like HTML
func ValidateHTML(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("empty content")
	}
	if !strings.Contains(trimmed, "<") {
		return fmt.Errorf("content does not appear to be HTML")
	}
	return nil
}

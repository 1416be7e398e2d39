package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/models"
)

// Report file names inside the run directory
const (
	JUnitFile       = "junit.xml"
	SummaryJSONFile = "summary.json"
	SummaryMDFile   = "summary.md"
	SummaryHTMLFile = "summary.html"
)

// Writer writes the enabled report formats into a run directory
type Writer struct {
	logger arbor.ILogger
	dir    string
	cfg    common.ReportConfig
}

// NewWriter creates a report writer for dir
func NewWriter(dir string, cfg common.ReportConfig, logger arbor.ILogger) *Writer {
	return &Writer{logger: logger, dir: dir, cfg: cfg}
}

// Write renders every enabled format and returns the files written
func (w *Writer) Write(runID string, reports ...*models.SuiteReport) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(w.dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if w.cfg.JUnit {
		data, err := JUnit(reports...)
		if err != nil {
			return written, err
		}
		if err := write(JUnitFile, data); err != nil {
			return written, err
		}
	}

	if w.cfg.Summary || w.cfg.HTML {
		summary := NewSummary(runID, reports...)
		md, err := summary.Markdown()
		if err != nil {
			return written, err
		}

		if w.cfg.Summary {
			data, err := summary.JSON()
			if err != nil {
				return written, err
			}
			if err := write(SummaryJSONFile, data); err != nil {
				return written, err
			}
			if err := write(SummaryMDFile, md); err != nil {
				return written, err
			}
		}
		if w.cfg.HTML {
			page, err := HTML("Smoke run "+runID, md)
			if err != nil {
				return written, err
			}
			if err := write(SummaryHTMLFile, page); err != nil {
				return written, err
			}
		}
	}

	w.logger.Info().
		Str("dir", w.dir).
		Int("files", len(written)).
		Msg("Reports written")
	return written, nil
}

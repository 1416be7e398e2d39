package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/transform"
)

// maxSeqBumps bounds the search for a free file name within one capture
const maxSeqBumps = 1000

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Options configure what a capture writes and where
type Options struct {
	Dir             string // Run directory; each test gets a subdirectory
	CaptureDOM      bool
	CaptureMarkdown bool
	Timeout         time.Duration
}

// OptionsFromConfig builds capture options rooted at runDir
func OptionsFromConfig(cfg common.ArtifactsConfig, runDir string) Options {
	return Options{
		Dir:             runDir,
		CaptureDOM:      cfg.CaptureDOM,
		CaptureMarkdown: cfg.CaptureMarkdown,
		Timeout:         cfg.CaptureTimeoutDuration(),
	}
}

// Capturer writes named snapshots of the current UI. It never fails a
// scenario: errors are logged and returned as *models.CaptureError for the
// caller to ignore.
type Capturer struct {
	logger    arbor.ILogger
	provider  interfaces.DriverProvider
	store     interfaces.ArtifactStore
	transform interfaces.TransformService
	observer  interfaces.RunObserver
	runID     string
	opts      Options

	mu   sync.Mutex
	seqs map[string]int
}

// NewCapturer creates a capturer. store may be nil to skip indexing.
func NewCapturer(provider interfaces.DriverProvider, store interfaces.ArtifactStore, runID string, opts Options, logger arbor.ILogger) *Capturer {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Capturer{
		logger:    logger,
		provider:  provider,
		store:     store,
		transform: transform.NewService(logger),
		runID:     runID,
		opts:      opts,
		seqs:      make(map[string]int),
	}
}

// SetObserver registers an observer for capture outcomes
func (c *Capturer) SetObserver(observer interfaces.RunObserver) {
	c.observer = observer
}

// ForScenario binds the capturer to one test identity
func (c *Capturer) ForScenario(testName string) *ScenarioCapturer {
	return &ScenarioCapturer{capturer: c, testName: testName}
}

// Capture snapshots the UI for testName under label
func (c *Capturer) Capture(ctx context.Context, testName, label string) (*models.Artifact, error) {
	artifact, err := c.capture(ctx, testName, label)
	if c.observer != nil {
		c.observer.CaptureCompleted(label, err)
	}
	if err != nil {
		captureErr := &models.CaptureError{TestName: testName, Label: label, Err: err}
		c.logger.Warn().
			Str("test", testName).
			Str("label", label).
			Err(err).
			Msg("Artifact capture failed")
		return nil, captureErr
	}

	c.logger.Info().
		Str("test", testName).
		Str("label", label).
		Int("seq", artifact.Seq).
		Str("path", artifact.PrimaryPath()).
		Msg("Artifact captured")
	return artifact, nil
}

func (c *Capturer) capture(ctx context.Context, testName, label string) (*models.Artifact, error) {
	driver, err := c.provider.Driver()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var (
		png     []byte
		html    string
		shotErr error
		domErr  error
	)
	wantDOM := c.opts.CaptureDOM || c.opts.CaptureMarkdown

	// Both grabs are best effort; one failing must not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		png, shotErr = driver.Screenshot(ctx)
		return nil
	})
	if wantDOM {
		g.Go(func() error {
			html, domErr = driver.Snapshot(ctx)
			return nil
		})
	}
	g.Wait()

	contents := []fileContent{}
	if shotErr == nil && len(png) > 0 {
		contents = append(contents, fileContent{kind: models.ArtifactScreenshot, ext: "png", data: png})
	}
	if domErr == nil && html != "" {
		if c.opts.CaptureDOM {
			contents = append(contents, fileContent{kind: models.ArtifactDOM, ext: "html", data: []byte(html)})
		}
		if c.opts.CaptureMarkdown {
			if markdown, err := c.transform.SnapshotToMarkdown(html); err == nil {
				contents = append(contents, fileContent{kind: models.ArtifactMarkdown, ext: "md", data: []byte(markdown)})
			} else {
				c.logger.Debug().Err(err).Str("label", label).Msg("Markdown rendition skipped")
			}
		}
	}
	if len(contents) == 0 {
		return nil, errors.Join(shotErr, domErr, errors.New("nothing captured"))
	}
	if shotErr != nil || domErr != nil {
		c.logger.Debug().
			Str("label", label).
			Err(errors.Join(shotErr, domErr)).
			Msg("Partial capture")
	}

	seq, files, err := c.write(testName, label, contents)
	if err != nil {
		return nil, err
	}

	artifact := &models.Artifact{
		ID:        common.NewArtifactID(),
		RunID:     c.runID,
		TestName:  testName,
		Seq:       seq,
		Label:     label,
		Timestamp: time.Now(),
		Files:     files,
	}

	if c.store != nil {
		if err := c.store.Append(ctx, artifact); err != nil {
			// Files are on disk; the index is only a convenience
			c.logger.Warn().Err(err).Str("key", artifact.Key()).Msg("Failed to index artifact")
		}
	}
	return artifact, nil
}

type fileContent struct {
	kind models.ArtifactKind
	ext  string
	data []byte
}

// write stores contents as <dir>/<test>/<seq>_<label>.<ext>. Files are
// created exclusively; an existing name bumps the sequence number.
func (c *Capturer) write(testName, label string, contents []fileContent) (int, []models.ArtifactFile, error) {
	dir := filepath.Join(c.opts.Dir, SafeName(testName))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.seqs[testName] + 1
	for bump := 0; bump < maxSeqBumps; bump, seq = bump+1, seq+1 {
		base := filepath.Join(dir, fmt.Sprintf("%02d_%s", seq, SafeName(label)))
		files, err := createAll(base, contents)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return 0, nil, err
		}
		c.seqs[testName] = seq
		return seq, files, nil
	}
	return 0, nil, fmt.Errorf("no free artifact name for %s/%s after %d attempts", testName, label, maxSeqBumps)
}

// createAll writes every file or none
func createAll(base string, contents []fileContent) ([]models.ArtifactFile, error) {
	files := make([]models.ArtifactFile, 0, len(contents))
	for _, content := range contents {
		path := base + "." + content.ext
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			removeAll(files)
			return nil, err
		}
		n, err := f.Write(content.data)
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
			removeAll(files)
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files = append(files, models.ArtifactFile{Kind: content.kind, Path: path, Size: int64(n)})
	}
	return files, nil
}

func removeAll(files []models.ArtifactFile) {
	for _, f := range files {
		os.Remove(f.Path)
	}
}

// SafeName maps a test name or label to a file name component
func SafeName(name string) string {
	safe := strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_.")
	if safe == "" {
		return "unnamed"
	}
	if len(safe) > 80 {
		safe = safe[:80]
	}
	return safe
}

// ScenarioCapturer is a Capturer bound to the active scenario
type ScenarioCapturer struct {
	capturer *Capturer
	testName string
}

// TestName returns the bound test identity
func (s *ScenarioCapturer) TestName() string {
	return s.testName
}

// Capture snapshots the UI under label for the bound scenario
func (s *ScenarioCapturer) Capture(ctx context.Context, label string) (*models.Artifact, error) {
	return s.capturer.Capture(ctx, s.testName, label)
}

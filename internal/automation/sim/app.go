// Package sim is an in-process stand-in for the editor under test. It keeps a
// live goquery DOM shaped like the editor workbench, reacts to keyboard input
// the way the real application does for the flows the smoke suites drive, and
// renders diagnostics asynchronously so tests exercise the same waits they
// would need against the real application.
package sim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/smoke/internal/models"
)

var errTargetClosed = errors.New("sim: target closed")

// Options tune the simulated editor
type Options struct {
	Workspace    string        // Directory listed by quick open
	UserDataDir  string        // User/settings.json is loaded from here when present
	StartupDelay time.Duration // Until the workbench root renders
	RenderDelay  time.Duration // Until quick open rows appear
	LintDelay    time.Duration // Debounce before diagnostics update
	NeverReady   bool          // Stay on the splash screen forever
}

// DefaultOptions returns delays in the range the real editor shows
func DefaultOptions() Options {
	return Options{
		StartupDelay: 150 * time.Millisecond,
		RenderDelay:  50 * time.Millisecond,
		LintDelay:    200 * time.Millisecond,
	}
}

type focus int

const (
	focusNone focus = iota
	focusEditor
	focusQuickOpen
	focusSettingsSearch
)

// App is one running simulated editor window
type App struct {
	mu     sync.Mutex
	logger arbor.ILogger
	opts   Options

	doc     *goquery.Document
	nodeIDs map[*html.Node]int64
	nodes   map[int64]*html.Node
	nextID  int64

	files       []string // Workspace-relative, slash separated
	buffers     map[string]*buffer
	order       []string // Open editors in tab order
	active      string
	focus       focus
	quickOpen   *quickOpenState
	problems    bool
	settings    *userSettings
	diagnostics map[string][]diagnostic
	pinned      map[string][]diagnostic // Panel-only markers no relint clears

	timers  map[string]*time.Timer
	watcher *fsnotify.Watcher
	ready   bool
	closed  bool
	onQuit  func()
}

const splashHTML = `<!DOCTYPE html><html><head><title>Smoke Editor</title></head><body><div class="sim-splash">Loading...</div></body></html>`

// NewApp starts a simulated editor. The workbench appears after opts.StartupDelay.
func NewApp(opts Options, logger arbor.ILogger) (*App, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(splashHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sim document: %w", err)
	}

	a := &App{
		logger:      logger,
		opts:        opts,
		doc:         doc,
		nodeIDs:     make(map[*html.Node]int64),
		nodes:       make(map[int64]*html.Node),
		buffers:     make(map[string]*buffer),
		diagnostics: make(map[string][]diagnostic),
		pinned:      make(map[string][]diagnostic),
		timers:      make(map[string]*time.Timer),
		settings:    newUserSettings(),
	}

	if opts.UserDataDir != "" {
		if err := a.settings.load(filepath.Join(opts.UserDataDir, "User", "settings.json")); err != nil {
			logger.Warn().Err(err).Msg("Failed to load user settings, using defaults")
		}
	}

	if opts.Workspace != "" {
		files, err := listWorkspace(opts.Workspace)
		if err != nil {
			return nil, fmt.Errorf("failed to list workspace %s: %w", opts.Workspace, err)
		}
		a.files = files
		a.watchWorkspace()
	}

	if !opts.NeverReady {
		a.after("startup", opts.StartupDelay, a.renderWorkbench)
	}

	logger.Debug().
		Str("workspace", opts.Workspace).
		Int("files", len(a.files)).
		Msg("Sim editor started")

	return a, nil
}

// Close stops timers and the workspace watcher. The DOM stays readable.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	for _, t := range a.timers {
		t.Stop()
	}
	watcher := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
}

// Closed reports whether the window is gone
func (a *App) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Setting returns the effective value of a user setting as a string
func (a *App) Setting(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.get(key)
}

// Buffer returns the current text of an open editor
func (a *App) Buffer(path string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buffers[path]
	if !ok {
		return "", false
	}
	return b.String(), true
}

// PinPanelMarker adds a problems panel entry for path that the editor never
// shows and relinting never clears, like a leftover from an earlier validation
func (a *App) PinPanelMarker(path string, severity models.ProblemSeverity, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pinned[path] = append(a.pinned[path], diagnostic{
		severity: severity,
		message:  message,
		source:   "css",
		line:     1,
		col:      1,
	})
	a.renderPanel()
}

// after runs fn under the lock once d has elapsed. A pending call with the
// same key is replaced, which gives debounce semantics.
func (a *App) after(key string, d time.Duration, fn func()) {
	if t, ok := a.timers[key]; ok {
		t.Stop()
	}
	a.timers[key] = time.AfterFunc(d, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.closed {
			return
		}
		delete(a.timers, key)
		fn()
	})
}

// requestQuit is called by the driver's Shutdown. The process exits shortly after.
func (a *App) requestQuit() {
	if a.onQuit == nil {
		return
	}
	quit := a.onQuit
	go func() {
		time.Sleep(20 * time.Millisecond)
		quit()
	}()
}

// nodeID returns the stable id for n, assigning one on first sight
func (a *App) nodeID(n *html.Node) int64 {
	if id, ok := a.nodeIDs[n]; ok {
		return id
	}
	a.nextID++
	a.nodeIDs[n] = a.nextID
	a.nodes[a.nextID] = n
	return a.nextID
}

// lookup returns the node for id if it is still attached to the document
func (a *App) lookup(id int64) (*html.Node, bool) {
	n, ok := a.nodes[id]
	if !ok {
		return nil, false
	}
	root := a.doc.Nodes[0]
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return n, true
		}
	}
	// Detached by a re-render
	delete(a.nodes, id)
	delete(a.nodeIDs, n)
	return nil, false
}

func listWorkspace(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(files)
	return files, err
}

// watchWorkspace keeps the quick open file list current while the app runs
func (a *App) watchWorkspace() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		a.logger.Warn().Err(err).Msg("Workspace watcher unavailable")
		return
	}

	_ = filepath.WalkDir(a.opts.Workspace, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				a.logger.Debug().Err(addErr).Str("dir", path).Msg("Failed to watch directory")
			}
		}
		return nil
	})
	a.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				files, err := listWorkspace(a.opts.Workspace)
				if err != nil {
					continue
				}
				a.mu.Lock()
				if !a.closed {
					a.files = files
				}
				a.mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				a.logger.Debug().Err(err).Msg("Workspace watcher error")
			}
		}
	}()
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/automation/cdp"
	"github.com/ternarybob/smoke/internal/automation/sim"
	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/applog"
	"github.com/ternarybob/smoke/internal/services/capture"
	"github.com/ternarybob/smoke/internal/services/input"
	"github.com/ternarybob/smoke/internal/services/locator"
	"github.com/ternarybob/smoke/internal/services/metrics"
	"github.com/ternarybob/smoke/internal/services/report"
	"github.com/ternarybob/smoke/internal/services/runner"
	"github.com/ternarybob/smoke/internal/services/session"
	"github.com/ternarybob/smoke/internal/services/waiter"
	"github.com/ternarybob/smoke/internal/storage/badger"
)

const (
	// MetricsFile is the Prometheus textfile written into the run directory
	MetricsFile = "metrics.prom"

	appLogLines = 20
)

// App holds all harness components and dependencies for one run
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	RunID  string
	RunDir string

	Waiter    *waiter.Waiter
	Launcher  interfaces.Launcher
	Connector interfaces.Connector
	Metrics   *metrics.Recorder
	Reports   *report.Writer
	Console   *report.Console
	AppLog    *applog.Service

	// Artifact index, nil when [artifacts] index is off
	IndexDB       *badger.BadgerDB
	ArtifactStore interfaces.ArtifactStore

	// SimLauncher is set for the "sim" kind so callers can reach the simulated editor
	SimLauncher *sim.Launcher
}

// New initializes the harness. The run directory is created and, when
// enabled, the artifact index is opened inside it.
func New(config *common.Config, runID, runDir string, logger arbor.ILogger) (*App, error) {
	return NewWithOutput(config, runID, runDir, os.Stdout, logger)
}

// NewWithOutput is New with the console report written to out
func NewWithOutput(config *common.Config, runID, runDir string, out io.Writer, logger arbor.ILogger) (*App, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", runDir, err)
	}

	app := &App{
		Config:  config,
		Logger:  logger,
		RunID:   runID,
		RunDir:  runDir,
		Metrics: metrics.NewRecorder(),
		Reports: report.NewWriter(runDir, config.Report, logger),
		Console: report.NewConsole(out, config.Environment != "ci"),
		AppLog:  applog.NewService(runDir, logger),
	}

	app.Waiter = waiter.NewWaiterFromConfig(config.Wait, logger)
	app.Waiter.SetObserver(app.Metrics)

	if err := app.initAutomation(); err != nil {
		return nil, fmt.Errorf("failed to initialize automation: %w", err)
	}

	if config.Artifacts.Index {
		if err := app.initIndex(); err != nil {
			return nil, fmt.Errorf("failed to initialize artifact index: %w", err)
		}
	}

	logger.Info().
		Str("run_id", runID).
		Str("run_dir", runDir).
		Str("kind", config.App.Kind).
		Str("binary", config.App.Binary).
		Msg("Harness initialized")

	return app, nil
}

// initAutomation selects the launcher and connector for the configured kind
func (a *App) initAutomation() error {
	switch a.Config.App.Kind {
	case "sim":
		a.SimLauncher = sim.NewLauncher(sim.DefaultOptions(), a.Logger)
		a.Launcher = a.SimLauncher
		a.Connector = sim.Connector{}
	case "electron", "browser", "command":
		a.Launcher = session.NewExecLauncher(a.RunDir, a.Logger)
		a.Connector = cdp.NewConnector(a.Waiter, a.Logger)
	default:
		return fmt.Errorf("unknown application kind %q", a.Config.App.Kind)
	}
	return nil
}

func (a *App) initIndex() error {
	db, err := badger.NewBadgerDB(a.Logger, filepath.Join(a.RunDir, "index"))
	if err != nil {
		return err
	}
	a.IndexDB = db
	a.ArtifactStore = badger.NewArtifactStorage(db, a.Logger)
	return nil
}

// NewRunner wires a fresh session and its dependents for one suite. A
// session starts once, so every suite gets its own.
func (a *App) NewRunner() (*runner.Runner, *session.Session) {
	s := session.NewSession(session.OptionsFromConfig(a.Config.App, a.RunDir), a.Launcher, a.Connector, a.Waiter, a.Logger)

	loc := locator.NewLocator(s, a.Waiter, a.Logger)
	in := input.NewService(s, loc, a.Config.Input.KeystrokesPerSecond, a.Logger)
	capturer := capture.NewCapturer(s, a.ArtifactStore, a.RunID, capture.OptionsFromConfig(a.Config.Artifacts, a.RunDir), a.Logger)
	capturer.SetObserver(a.Metrics)

	r := runner.NewRunner(runner.Deps{
		Session:  s,
		Locator:  loc,
		Input:    in,
		Waiter:   a.Waiter,
		Capturer: capturer,
		Observer: a.Metrics,
	}, runner.OptionsFromConfig(a.Config.Suite, a.RunID), a.Logger)

	return r, s
}

// RunSuites executes suites one after another, each in its own session,
// then writes reports and metrics. Report failures are logged, never fatal.
func (a *App) RunSuites(ctx context.Context, suites ...runner.Suite) []*models.SuiteReport {
	reports := make([]*models.SuiteReport, 0, len(suites))
	for _, suite := range suites {
		if ctx.Err() != nil {
			a.Logger.Warn().Str("suite", suite.Name).Msg("Run cancelled, suite not started")
			break
		}
		r, _ := a.NewRunner()
		rep := r.Run(ctx, suite)
		if !rep.Passed() {
			rep.AppLog = a.appLogTail()
		}
		reports = append(reports, rep)
		a.Console.Suite(rep)
	}

	written, err := a.Reports.Write(a.RunID, reports...)
	if err != nil {
		a.Logger.Error().Err(err).Msg("Failed to write reports")
	}
	if a.Config.Report.Metrics {
		path := filepath.Join(a.RunDir, MetricsFile)
		if err := a.Metrics.WriteTextfile(path); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to write metrics")
		} else {
			written = append(written, path)
		}
	}

	a.Logger.Info().
		Str("run_id", a.RunID).
		Int("suites", len(reports)).
		Int("files", len(written)).
		Msg("Run complete")

	return reports
}

// appLogTail returns the warnings and errors the application printed during
// its last launch. The sim kind writes no log.
func (a *App) appLogTail() []string {
	entries, err := a.AppLog.LastLaunch(appLogLines, "warn", "error")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.Logger.Warn().Err(err).Msg("Failed to read application log")
		}
		return nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Level+" "+e.Message)
	}
	return lines
}

// Close releases the artifact index
func (a *App) Close() error {
	if a.IndexDB != nil {
		if err := a.IndexDB.Close(); err != nil {
			return fmt.Errorf("failed to close artifact index: %w", err)
		}
		a.Logger.Debug().Msg("Artifact index closed")
	}
	return nil
}

// Passed reports whether every suite passed
func Passed(reports []*models.SuiteReport) bool {
	for _, r := range reports {
		if !r.Passed() {
			return false
		}
	}
	return true
}

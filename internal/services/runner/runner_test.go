package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/automation/sim"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/capture"
	"github.com/ternarybob/smoke/internal/services/input"
	"github.com/ternarybob/smoke/internal/services/locator"
	"github.com/ternarybob/smoke/internal/services/session"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

type harness struct {
	launcher *sim.Launcher
	session  *session.Session
	observer *recordingObserver
	runDir   string
	deps     Deps
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string]models.Outcome
	captures int
}

func (o *recordingObserver) ScenarioCompleted(name string, outcome models.Outcome, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[name] = outcome
}

func (o *recordingObserver) CaptureCompleted(label string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.captures++
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := arbor.NewLogger()

	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "style.css"), []byte("body {\n}\n"), 0644))
	launcher := sim.NewLauncher(sim.Options{
		Workspace:    workspace,
		StartupDelay: 20 * time.Millisecond,
		RenderDelay:  10 * time.Millisecond,
		LintDelay:    10 * time.Millisecond,
	}, logger)

	w := waiter.NewWaiter(logger, time.Second, 100*time.Millisecond, 100*time.Millisecond)
	s := session.NewSession(session.Options{
		Spec:           models.LaunchSpec{Kind: "sim"},
		ReadySelector:  ".monaco-workbench",
		StartupTimeout: 2 * time.Second,
		ShutdownGrace:  300 * time.Millisecond,
		KillTimeout:    time.Second,
	}, launcher, sim.Connector{}, w, logger)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	loc := locator.NewLocator(s, w, logger)
	runDir := t.TempDir()
	capturer := capture.NewCapturer(s, nil, "run-1", capture.Options{Dir: runDir, CaptureDOM: true}, logger)
	observer := &recordingObserver{outcomes: map[string]models.Outcome{}}
	capturer.SetObserver(observer)

	return &harness{
		launcher: launcher,
		session:  s,
		observer: observer,
		runDir:   runDir,
		deps: Deps{
			Session:  s,
			Locator:  loc,
			Input:    input.NewService(s, loc, 0, logger),
			Waiter:   w,
			Capturer: capturer,
			Observer: observer,
		},
	}
}

func (h *harness) runner(opts Options) *Runner {
	if opts.RunID == "" {
		opts.RunID = "run-1"
	}
	return NewRunner(h.deps, opts, arbor.NewLogger())
}

func passing(ctx context.Context, sc *Scenario) error {
	_, err := sc.Locator().WaitForElement(ctx, ".monaco-workbench", 0)
	return err
}

func outcomes(report *models.SuiteReport) []models.Outcome {
	out := []models.Outcome{}
	for _, s := range report.Scenarios {
		out = append(out, s.Outcome)
	}
	return out
}

func TestRun_AllPass(t *testing.T) {
	h := newHarness(t)

	report := h.runner(Options{}).Run(context.Background(), Suite{
		Name: "basic",
		Cases: []TestCase{
			{Name: "first", Body: passing},
			{Name: "second", Body: passing},
		},
	})

	assert.True(t, report.Passed())
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []models.Outcome{models.OutcomePass, models.OutcomePass}, outcomes(report))
	assert.Equal(t, models.SessionStopped, h.session.State(), "session stopped after the suite")

	var seen []models.SessionState
	for _, tr := range report.Transitions {
		seen = append(seen, tr.To)
	}
	assert.Contains(t, seen, models.SessionRunning)
	assert.Equal(t, models.SessionStopped, seen[len(seen)-1])
	assert.Equal(t, models.OutcomePass, h.observer.outcomes["second"])
}

func TestRun_AssertionFailureCapturesArtifact(t *testing.T) {
	h := newHarness(t)

	report := h.runner(Options{}).Run(context.Background(), Suite{
		Name: "failing",
		Cases: []TestCase{
			{Name: "wrong count", Body: func(ctx context.Context, sc *Scenario) error {
				n, err := sc.Locator().Count(ctx, ".monaco-workbench")
				if err != nil {
					return err
				}
				return sc.ExpectEqual(2, n, "workbench roots")
			}},
			{Name: "still runs", Body: passing},
		},
	})

	require.Len(t, report.Scenarios, 2)
	failed := report.Scenarios[0]
	assert.Equal(t, models.OutcomeFail, failed.Outcome)
	assert.Equal(t, models.TierAssertion, failed.Tier)
	assert.Contains(t, failed.Error, "workbench roots")
	require.Len(t, failed.Artifacts, 1)
	assert.Equal(t, "failure", failed.Artifacts[0].Label)
	assert.FileExists(t, filepath.Join(h.runDir, "wrong_count", "01_failure.png"))

	assert.Equal(t, models.OutcomePass, report.Scenarios[1].Outcome)
	assert.False(t, report.Aborted)
	assert.False(t, report.Passed())
}

func TestRun_TimeoutFailsOnlyThatScenario(t *testing.T) {
	h := newHarness(t)

	report := h.runner(Options{}).Run(context.Background(), Suite{
		Name: "timeouts",
		Cases: []TestCase{
			{Name: "missing element", Body: func(ctx context.Context, sc *Scenario) error {
				_, err := sc.Locator().WaitForElement(ctx, ".does-not-exist", 200*time.Millisecond)
				return err
			}},
			{Name: "after", Body: passing},
		},
	})

	require.Len(t, report.Scenarios, 2)
	assert.Equal(t, models.OutcomeFail, report.Scenarios[0].Outcome)
	assert.Equal(t, models.TierScenario, report.Scenarios[0].Tier)
	assert.Contains(t, report.Scenarios[0].Error, "timed out")
	assert.Equal(t, models.OutcomePass, report.Scenarios[1].Outcome)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	h := newHarness(t)

	report := h.runner(Options{}).Run(context.Background(), Suite{
		Name: "panics",
		Cases: []TestCase{
			{Name: "boom", Body: func(ctx context.Context, sc *Scenario) error {
				panic("boom")
			}},
			{Name: "nil body"},
			{Name: "after", Body: passing},
		},
	})

	assert.Equal(t, []models.Outcome{models.OutcomeFail, models.OutcomeFail, models.OutcomePass}, outcomes(report))
	assert.Contains(t, report.Scenarios[0].Error, "panicked: boom")
	assert.Contains(t, report.Scenarios[1].Error, "no body")
}

func TestRun_CrashFailsRemainingScenarios(t *testing.T) {
	h := newHarness(t)
	var ranAfterCrash atomic.Bool

	report := h.runner(Options{}).Run(context.Background(), Suite{
		Name: "crash",
		Cases: []TestCase{
			{Name: "crashes", Body: func(ctx context.Context, sc *Scenario) error {
				h.launcher.Last().Crash()
				// The next driver call sees the crash
				err := sc.Locator().WaitForAbsent(ctx, ".monaco-workbench", time.Second)
				return err
			}},
			{Name: "never runs", Body: func(ctx context.Context, sc *Scenario) error {
				ranAfterCrash.Store(true)
				return nil
			}},
		},
	})

	require.Len(t, report.Scenarios, 2)
	assert.Equal(t, models.OutcomeFail, report.Scenarios[0].Outcome)
	assert.Equal(t, models.OutcomeFail, report.Scenarios[1].Outcome)
	assert.Equal(t, models.TierInfrastructure, report.Scenarios[1].Tier)
	assert.Contains(t, report.Scenarios[1].Error, "not run")
	assert.False(t, ranAfterCrash.Load())
	assert.True(t, report.Aborted)
	assert.Contains(t, report.SuiteError, "crashed")
}

func TestRun_StartupFailureSkipsSuite(t *testing.T) {
	h := newHarness(t)
	h.launcher.FailLaunch = errors.New("binary missing")

	report := h.runner(Options{}).Run(context.Background(), Suite{
		Name:  "no app",
		Cases: []TestCase{{Name: "a", Body: passing}, {Name: "b", Body: passing}},
	})

	assert.True(t, report.Aborted)
	assert.Contains(t, report.SuiteError, "binary missing")
	assert.Equal(t, []models.Outcome{models.OutcomeSkip, models.OutcomeSkip}, outcomes(report))
	assert.False(t, report.Passed())
	assert.Equal(t, models.SessionStopped, h.session.State())
}

func TestRun_SuiteTimeout(t *testing.T) {
	h := newHarness(t)

	report := h.runner(Options{SuiteTimeout: 500 * time.Millisecond}).Run(context.Background(), Suite{
		Name: "slow",
		Cases: []TestCase{
			{Name: "hangs", Body: func(ctx context.Context, sc *Scenario) error {
				<-ctx.Done()
				return ctx.Err()
			}},
			{Name: "skipped", Body: passing},
		},
	})

	require.Len(t, report.Scenarios, 2)
	assert.Equal(t, models.OutcomeFail, report.Scenarios[0].Outcome)
	assert.Equal(t, models.OutcomeSkip, report.Scenarios[1].Outcome)
	assert.Contains(t, report.SuiteError, "suite timed out")
	assert.Equal(t, models.SessionStopped, h.session.State(), "teardown runs after the suite deadline")
}

func TestRun_FailFastAndSkip(t *testing.T) {
	h := newHarness(t)

	report := h.runner(Options{FailFast: true}).Run(context.Background(), Suite{
		Name: "fail fast",
		Cases: []TestCase{
			{Name: "skipped on purpose", Body: passing, Skip: "flaky on ci"},
			{Name: "fails", Body: func(ctx context.Context, sc *Scenario) error {
				return sc.Fail("nope")
			}},
			{Name: "not reached", Body: passing},
		},
	})

	assert.Equal(t, []models.Outcome{models.OutcomeSkip, models.OutcomeFail, models.OutcomeSkip}, outcomes(report))
	assert.Equal(t, "flaky on ci", report.Scenarios[0].Error)
	assert.Contains(t, report.Scenarios[2].Error, "fail fast")
}

func TestRun_OneSessionAtATime(t *testing.T) {
	first := newHarness(t)
	second := newHarness(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan *models.SuiteReport, 1)
	go func() {
		done <- first.runner(Options{}).Run(context.Background(), Suite{
			Name: "holder",
			Cases: []TestCase{{Name: "hold", Body: func(ctx context.Context, sc *Scenario) error {
				close(entered)
				<-release
				return nil
			}}},
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	report := second.runner(Options{}).Run(ctx, Suite{
		Name:  "blocked",
		Cases: []TestCase{{Name: "x", Body: passing}},
	})
	assert.Contains(t, report.SuiteError, "session slot")
	assert.Equal(t, []models.Outcome{models.OutcomeSkip}, outcomes(report))
	assert.Nil(t, second.launcher.Last(), "second suite never launched an application")

	close(release)
	assert.True(t, (<-done).Passed())
}

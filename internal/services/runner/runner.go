package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/capture"
	"github.com/ternarybob/smoke/internal/services/input"
	"github.com/ternarybob/smoke/internal/services/locator"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// sessionSlot allows one live session per process
var sessionSlot = semaphore.NewWeighted(1)

// Options control suite execution
type Options struct {
	RunID           string
	SuiteTimeout    time.Duration
	TeardownTimeout time.Duration
	FailFast        bool
}

// OptionsFromConfig builds runner options from the [suite] section
func OptionsFromConfig(cfg common.SuiteConfig, runID string) Options {
	return Options{
		RunID:           runID,
		SuiteTimeout:    cfg.TimeoutDuration(),
		TeardownTimeout: cfg.TeardownTimeoutDuration(),
		FailFast:        cfg.FailFast,
	}
}

// Deps are the harness components a runner wires into each scenario
type Deps struct {
	Session  interfaces.Session
	Locator  *locator.Locator
	Input    *input.Service
	Waiter   *waiter.Waiter
	Capturer *capture.Capturer
	Observer interfaces.RunObserver // optional
}

// Runner executes suites against one application session
type Runner struct {
	logger arbor.ILogger
	deps   Deps
	opts   Options
}

// NewRunner creates a runner
func NewRunner(deps Deps, opts Options, logger arbor.ILogger) *Runner {
	if opts.SuiteTimeout <= 0 {
		opts.SuiteTimeout = 10 * time.Minute
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = 30 * time.Second
	}
	return &Runner{logger: logger, deps: deps, opts: opts}
}

// Run starts the session, executes every case in order and stops the
// session. Infrastructure failures abort the rest of the suite: a startup
// failure skips every case, a crash fails every remaining case.
func (r *Runner) Run(ctx context.Context, suite Suite) *models.SuiteReport {
	report := &models.SuiteReport{
		RunID:     r.opts.RunID,
		Suite:     suite.Name,
		StartedAt: time.Now(),
		Scenarios: []models.ScenarioResult{},
	}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	suiteCtx, cancel := context.WithTimeout(ctx, r.opts.SuiteTimeout)
	defer cancel()

	r.logger.Info().
		Str("suite", suite.Name).
		Int("scenarios", len(suite.Cases)).
		Dur("timeout", r.opts.SuiteTimeout).
		Msg("Starting suite")

	if err := sessionSlot.Acquire(suiteCtx, 1); err != nil {
		report.SuiteError = fmt.Sprintf("waiting for session slot: %v", err)
		report.Aborted = true
		r.skipAll(report, suite.Cases, "no session available")
		return report
	}
	defer sessionSlot.Release(1)

	// Teardown gets its own budget so a suite timeout still stops the app
	defer r.teardown(ctx, report)

	if err := r.deps.Session.Start(suiteCtx); err != nil {
		report.SuiteError = err.Error()
		report.Aborted = true
		r.logger.Error().Err(err).Str("suite", suite.Name).Msg("Suite aborted: application did not start")
		r.skipAll(report, suite.Cases, "application failed to start")
		return report
	}
	if err := r.deps.Session.MarkRunning(); err != nil {
		report.SuiteError = err.Error()
		report.Aborted = true
		r.skipAll(report, suite.Cases, "session not usable")
		return report
	}

	var abortErr error
	failed := false
	for _, tc := range suite.Cases {
		switch {
		case abortErr != nil:
			report.Scenarios = append(report.Scenarios, r.autoFail(tc, abortErr))
			continue
		case suiteCtx.Err() != nil:
			report.Scenarios = append(report.Scenarios, skipped(tc.Name, fmt.Sprintf("suite stopped: %v", suiteCtx.Err())))
			continue
		case r.opts.FailFast && failed:
			report.Scenarios = append(report.Scenarios, skipped(tc.Name, "fail fast after earlier failure"))
			continue
		case tc.Skip != "":
			report.Scenarios = append(report.Scenarios, skipped(tc.Name, tc.Skip))
			r.observe(tc.Name, models.OutcomeSkip, 0)
			continue
		}

		result, err := r.runCase(suiteCtx, tc)
		report.Scenarios = append(report.Scenarios, result)
		if result.Outcome == models.OutcomeFail {
			failed = true
		}

		if models.IsInfrastructure(err) || r.deps.Session.State() == models.SessionCrashed {
			abortErr = err
			if r.deps.Session.State() == models.SessionCrashed {
				abortErr = fmt.Errorf("%w during %q", models.ErrSessionCrashed, tc.Name)
			}
			report.Aborted = true
			report.SuiteError = abortErr.Error()
			r.logger.Error().
				Err(abortErr).
				Str("scenario", tc.Name).
				Msg("Infrastructure failure, remaining scenarios fail automatically")
		}
	}

	if err := suiteCtx.Err(); err != nil && errors.Is(err, context.DeadlineExceeded) && report.SuiteError == "" {
		report.SuiteError = fmt.Sprintf("suite timed out after %v", r.opts.SuiteTimeout)
	}

	passed, failedCount, skippedCount := report.Counts()
	r.logger.Info().
		Str("suite", suite.Name).
		Int("passed", passed).
		Int("failed", failedCount).
		Int("skipped", skippedCount).
		Dur("elapsed", time.Since(report.StartedAt)).
		Msg("Suite finished")

	return report
}

func (r *Runner) runCase(ctx context.Context, tc TestCase) (models.ScenarioResult, error) {
	sc := &Scenario{
		name:    tc.Name,
		logger:  r.logger,
		locator: r.deps.Locator,
		input:   r.deps.Input,
		waiter:  r.deps.Waiter,
	}
	if r.deps.Capturer != nil {
		sc.capturer = r.deps.Capturer.ForScenario(tc.Name)
	}

	r.logger.Info().Str("scenario", tc.Name).Msg("Running scenario")

	start := time.Now()
	err := invoke(ctx, tc.Body, sc)
	elapsed := time.Since(start)

	result := models.ScenarioResult{
		Name:      tc.Name,
		Outcome:   models.OutcomePass,
		StartedAt: start,
		Duration:  elapsed,
	}

	if err != nil {
		result.Outcome = models.OutcomeFail
		result.Tier = models.Tier(err)
		result.Error = err.Error()

		// The scenario ctx may already be dead (suite timeout); capture anyway
		sc.Capture(context.WithoutCancel(ctx), "failure")

		r.logger.Error().
			Str("scenario", tc.Name).
			Str("tier", string(result.Tier)).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("Scenario failed")
	} else {
		r.logger.Info().
			Str("scenario", tc.Name).
			Dur("elapsed", elapsed).
			Msg("Scenario passed")
	}

	result.Artifacts = sc.Artifacts()
	r.observe(tc.Name, result.Outcome, elapsed)
	return result, err
}

// invoke runs body, turning a panic into a scenario error
func invoke(ctx context.Context, body Body, sc *Scenario) (err error) {
	if body == nil {
		return fmt.Errorf("scenario %q has no body", sc.name)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scenario panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return body(ctx, sc)
}

func (r *Runner) autoFail(tc TestCase, cause error) models.ScenarioResult {
	r.observe(tc.Name, models.OutcomeFail, 0)
	return models.ScenarioResult{
		Name:      tc.Name,
		Outcome:   models.OutcomeFail,
		Tier:      models.TierInfrastructure,
		Error:     fmt.Sprintf("not run: %v", cause),
		StartedAt: time.Now(),
	}
}

func (r *Runner) skipAll(report *models.SuiteReport, cases []TestCase, reason string) {
	for _, tc := range cases {
		report.Scenarios = append(report.Scenarios, skipped(tc.Name, reason))
		r.observe(tc.Name, models.OutcomeSkip, 0)
	}
}

func skipped(name, reason string) models.ScenarioResult {
	return models.ScenarioResult{
		Name:      name,
		Outcome:   models.OutcomeSkip,
		Error:     reason,
		StartedAt: time.Now(),
	}
}

func (r *Runner) teardown(parent context.Context, report *models.SuiteReport) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.opts.TeardownTimeout)
	defer cancel()

	if err := r.deps.Session.Stop(ctx); err != nil {
		var shutdownErr *models.ShutdownError
		if errors.As(err, &shutdownErr) {
			r.logger.Warn().Err(err).Int("pid", shutdownErr.Pid).Msg("Application needed a forced kill")
		} else {
			r.logger.Error().Err(err).Msg("Failed to stop application")
		}
	}
	report.Transitions = r.deps.Session.Transitions()
}

func (r *Runner) observe(name string, outcome models.Outcome, elapsed time.Duration) {
	if r.deps.Observer != nil {
		r.deps.Observer.ScenarioCompleted(name, outcome, elapsed)
	}
}

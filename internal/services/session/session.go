package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// Session owns one application-under-test process for its whole life.
//
//	Stopped(initial) -> Starting -> Ready -> Running -> Stopping -> Stopped
//	any live state -> Crashed on unexpected exit
//
// A session starts at most once. Selectors can only be resolved through
// Driver() while the session is Ready or Running.
type Session struct {
	logger    arbor.ILogger
	launcher  interfaces.Launcher
	connector interfaces.Connector
	waiter    *waiter.Waiter
	opts      Options

	mu          sync.Mutex
	state       models.SessionState
	started     bool
	proc        interfaces.Process
	driver      interfaces.Driver
	exited      chan struct{}
	exitErr     error
	transitions []models.SessionTransition
}

// NewSession creates a session in the Stopped state
func NewSession(opts Options, launcher interfaces.Launcher, connector interfaces.Connector, w *waiter.Waiter, logger arbor.ILogger) *Session {
	return &Session{
		logger:    logger,
		launcher:  launcher,
		connector: connector,
		waiter:    w,
		opts:      opts.withDefaults(),
		state:     models.SessionStopped,
	}
}

// State returns the current lifecycle state
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pid returns the process id, or 0 before launch
func (s *Session) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.Pid()
}

// Transitions returns a copy of the state history
func (s *Session) Transitions() []models.SessionTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SessionTransition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Driver returns the automation driver while the session is usable. Any other
// state yields a *models.LifecycleError; a crashed session unwraps to
// models.ErrSessionCrashed.
func (s *Session) Driver() (interfaces.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Usable() || s.driver == nil {
		return nil, &models.LifecycleError{Op: "resolve driver", State: s.state}
	}
	return s.driver, nil
}

// Start launches the application, attaches the driver and waits for the
// ready selector. Any failure kills the process and returns *models.StartupError.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		state := s.state
		s.mu.Unlock()
		return &models.LifecycleError{Op: "start", State: state}
	}
	s.started = true
	s.transitionLocked(models.SessionStarting, "start requested")
	s.mu.Unlock()

	begin := time.Now()
	startCtx, cancel := context.WithTimeout(ctx, s.opts.StartupTimeout)
	defer cancel()

	s.logger.Info().
		Str("kind", s.opts.Spec.Kind).
		Str("binary", s.opts.Spec.Binary).
		Str("workspace", s.opts.Spec.Workspace).
		Dur("timeout", s.opts.StartupTimeout).
		Msg("Starting application")

	proc, err := s.launcher.Launch(startCtx, s.opts.Spec)
	if err != nil {
		return s.failStart(begin, fmt.Errorf("launch: %w", err))
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.proc = proc
	s.exited = exited
	s.mu.Unlock()
	go s.watch(proc, exited)

	s.logger.Debug().
		Int("pid", proc.Pid()).
		Str("endpoint", proc.DebugEndpoint()).
		Msg("Application process started")

	driver, err := s.connector.Connect(startCtx, proc)
	if err != nil {
		return s.failStart(begin, fmt.Errorf("connect to %s: %w", proc.DebugEndpoint(), err))
	}

	// Ready wait gets what is left of the startup budget
	remaining := s.opts.StartupTimeout - time.Since(begin)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	spec := s.waiter.Spec(fmt.Sprintf("ready selector %q", s.opts.ReadySelector)).WithTimeout(remaining)
	err = s.waiter.Wait(ctx, spec, func(ctx context.Context) (bool, error) {
		select {
		case <-exited:
			return false, waiter.Permanent(fmt.Errorf("%w before ready: %v", models.ErrSessionCrashed, s.exitError()))
		default:
		}
		handles, err := driver.QueryAll(ctx, s.opts.ReadySelector)
		if errors.Is(err, models.ErrInvalidSelector) {
			return false, waiter.Permanent(err)
		}
		return len(handles) > 0, err
	})
	if err != nil {
		_ = driver.Close()
		return s.failStart(begin, err)
	}

	s.mu.Lock()
	if s.state != models.SessionStarting {
		// Crashed between the last poll and now
		state := s.state
		s.mu.Unlock()
		_ = driver.Close()
		return s.failStart(begin, &models.LifecycleError{Op: "start", State: state})
	}
	s.driver = driver
	s.transitionLocked(models.SessionReady, "ready selector present")
	s.mu.Unlock()

	s.logger.Info().
		Int("pid", proc.Pid()).
		Dur("elapsed", time.Since(begin)).
		Msg("Application ready")

	return nil
}

// MarkRunning moves a Ready session to Running
func (s *Session) MarkRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case models.SessionRunning:
		return nil
	case models.SessionReady:
		s.transitionLocked(models.SessionRunning, "scenarios executing")
		return nil
	default:
		return &models.LifecycleError{Op: "mark running", State: s.state}
	}
}

// Stop shuts the application down: ask it to quit, then SIGTERM, and after
// the grace period force-kill. The session always ends Stopped. A forced
// kill is reported as *models.ShutdownError.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == models.SessionStopped || s.state == models.SessionStopping {
		s.mu.Unlock()
		return nil
	}
	s.transitionLocked(models.SessionStopping, "stop requested")
	driver := s.driver
	s.driver = nil
	proc := s.proc
	exited := s.exited
	s.mu.Unlock()

	if proc == nil {
		s.setStopped("no process")
		return nil
	}

	pid := proc.Pid()
	s.logger.Info().Int("pid", pid).Msg("Stopping application")

	if isClosed(exited) {
		if driver != nil {
			_ = driver.Close()
		}
		s.setStopped("process already exited")
		return nil
	}

	half := s.opts.ShutdownGrace / 2

	// 1. Ask the application to quit through the automation channel
	if driver != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, half)
		if err := driver.Shutdown(shutdownCtx); err != nil {
			s.logger.Debug().Err(err).Int("pid", pid).Msg("Graceful shutdown request failed")
		}
		cancel()
		_ = driver.Close()

		if waitExit(ctx, exited, half) {
			s.setStopped("application quit")
			return nil
		}
	}

	// 2. Terminate signal
	if err := proc.Terminate(); err != nil {
		s.logger.Debug().Err(err).Int("pid", pid).Msg("Terminate signal failed")
	}
	if waitExit(ctx, exited, s.opts.ShutdownGrace-half) {
		s.setStopped("terminated")
		return nil
	}

	// 3. Force kill
	s.logger.Warn().
		Int("pid", pid).
		Dur("grace", s.opts.ShutdownGrace).
		Msg("Application did not exit gracefully, killing")

	shutdownErr := &models.ShutdownError{
		Pid:    pid,
		Forced: true,
		Err:    fmt.Errorf("no exit within %v grace period", s.opts.ShutdownGrace),
	}
	if err := proc.Kill(); err != nil {
		shutdownErr.Err = fmt.Errorf("%v; kill: %w", shutdownErr.Err, err)
	}
	// Kill is not cancellable: use a fresh bound, not ctx
	if !waitExit(context.Background(), exited, s.opts.KillTimeout) {
		shutdownErr.Err = fmt.Errorf("%v; process still running %v after kill", shutdownErr.Err, s.opts.KillTimeout)
		s.logger.Error().Int("pid", pid).Msg("Application survived kill")
	}

	s.setStopped("killed")
	return shutdownErr
}

// Done is closed when the application process exits. Nil before launch.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// watch waits for the process and marks the session Crashed on any exit
// that was not requested
func (s *Session) watch(proc interfaces.Process, exited chan struct{}) {
	err := proc.Wait()

	s.mu.Lock()
	s.exitErr = err
	close(exited)

	if s.state == models.SessionStopping || s.state == models.SessionStopped {
		s.mu.Unlock()
		return
	}

	reason := "process exited unexpectedly"
	if err != nil {
		reason = fmt.Sprintf("%s: %v", reason, err)
	}
	s.transitionLocked(models.SessionCrashed, reason)
	driver := s.driver
	s.driver = nil
	s.mu.Unlock()

	if driver != nil {
		_ = driver.Close()
	}

	s.logger.Error().
		Int("pid", proc.Pid()).
		Err(err).
		Msg("Application crashed")
}

func (s *Session) failStart(begin time.Time, cause error) error {
	s.mu.Lock()
	proc := s.proc
	exited := s.exited
	s.mu.Unlock()

	if proc != nil && !isClosed(exited) {
		if err := proc.Kill(); err != nil {
			s.logger.Warn().Err(err).Int("pid", proc.Pid()).Msg("Failed to kill application after startup failure")
		}
		waitExit(context.Background(), exited, s.opts.KillTimeout)
	}

	s.setStopped("startup failed")

	startupErr := &models.StartupError{
		Binary:  s.opts.Spec.Binary,
		Elapsed: time.Since(begin),
		Err:     cause,
	}
	if startupErr.Binary == "" {
		startupErr.Binary = s.opts.Spec.Kind
	}

	s.logger.Error().
		Err(cause).
		Dur("elapsed", startupErr.Elapsed).
		Msg("Application failed to start")

	return startupErr
}

func (s *Session) exitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

func (s *Session) setStopped(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(models.SessionStopped, reason)
}

func (s *Session) transitionLocked(to models.SessionState, reason string) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.transitions = append(s.transitions, models.SessionTransition{
		From:   from,
		To:     to,
		At:     time.Now(),
		Reason: reason,
	})
	s.logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("Session state changed")
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// waitExit waits up to d for exited to close. ctx ending counts as the grace
// running out.
func waitExit(ctx context.Context, exited <-chan struct{}, d time.Duration) bool {
	if exited == nil {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-exited:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return isClosed(exited)
	}
}

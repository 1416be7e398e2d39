package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
)

var pidCounter atomic.Int64

func init() {
	pidCounter.Store(40000)
}

// Process is the simulated application process. It exits when the window
// quits or on Terminate, unless it ignores both, and always on Kill or Crash.
type Process struct {
	pid             int
	app             *App
	ignoreTerminate bool

	once    sync.Once
	exited  chan struct{}
	exitErr error
}

func newProcess(app *App, ignoreTerminate bool) *Process {
	p := &Process{
		pid:             int(pidCounter.Add(1)),
		app:             app,
		ignoreTerminate: ignoreTerminate,
		exited:          make(chan struct{}),
	}
	app.mu.Lock()
	app.onQuit = func() {
		if !ignoreTerminate {
			p.exit(nil)
		}
	}
	app.mu.Unlock()
	return p
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) Wait() error {
	<-p.exited
	return p.exitErr
}

func (p *Process) Terminate() error {
	if p.ignoreTerminate {
		return nil
	}
	p.exit(nil)
	return nil
}

func (p *Process) Kill() error {
	p.exit(errors.New("signal: killed"))
	return nil
}

// Crash ends the process unexpectedly, as a renderer crash would
func (p *Process) Crash() {
	p.exit(errors.New("exit status 134"))
}

// Exited reports whether the process has ended
func (p *Process) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

func (p *Process) DebugEndpoint() string {
	return fmt.Sprintf("sim://%d", p.pid)
}

// App returns the window hosted by this process
func (p *Process) App() *App {
	return p.app
}

func (p *Process) exit(err error) {
	p.once.Do(func() {
		p.app.Close()
		p.exitErr = err
		close(p.exited)
	})
}

// Launcher starts simulated editors. Every launched process is kept so tests
// can reach it.
type Launcher struct {
	Options         Options
	IgnoreTerminate bool  // Processes ignore quit requests and terminate signals
	FailLaunch      error // Returned from Launch when set

	logger    arbor.ILogger
	mu        sync.Mutex
	processes []*Process
}

// NewLauncher creates a sim launcher with the given options
func NewLauncher(opts Options, logger arbor.ILogger) *Launcher {
	return &Launcher{Options: opts, logger: logger}
}

func (l *Launcher) Launch(ctx context.Context, spec models.LaunchSpec) (interfaces.Process, error) {
	if l.FailLaunch != nil {
		return nil, l.FailLaunch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := l.Options
	if spec.Workspace != "" {
		opts.Workspace = spec.Workspace
	}
	if spec.UserDataDir != "" {
		opts.UserDataDir = spec.UserDataDir
	}

	app, err := NewApp(opts, l.logger)
	if err != nil {
		return nil, err
	}
	p := newProcess(app, l.IgnoreTerminate)

	l.mu.Lock()
	l.processes = append(l.processes, p)
	l.mu.Unlock()

	l.logger.Info().
		Int("pid", p.pid).
		Str("workspace", opts.Workspace).
		Msg("Sim application launched")

	return p, nil
}

// Last returns the most recently launched process, or nil
func (l *Launcher) Last() *Process {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.processes) == 0 {
		return nil
	}
	return l.processes[len(l.processes)-1]
}

// Connector attaches drivers to simulated processes
type Connector struct{}

func (Connector) Connect(ctx context.Context, proc interfaces.Process) (interfaces.Driver, error) {
	p, ok := proc.(*Process)
	if !ok {
		return nil, fmt.Errorf("sim connector cannot attach to %T", proc)
	}
	if p.Exited() {
		return nil, fmt.Errorf("connect to %s: %w", p.DebugEndpoint(), errTargetClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newDriver(p.app), nil
}

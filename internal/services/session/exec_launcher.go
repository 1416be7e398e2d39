package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/applog"
)

// ExecLauncher starts the application under test as a child process with a
// DevTools port open. Output goes to app.log in LogDir.
type ExecLauncher struct {
	logger arbor.ILogger
	LogDir string
}

// NewExecLauncher creates a launcher writing process output under logDir
func NewExecLauncher(logDir string, logger arbor.ILogger) *ExecLauncher {
	return &ExecLauncher{logger: logger, LogDir: logDir}
}

func (l *ExecLauncher) Launch(ctx context.Context, spec models.LaunchSpec) (interfaces.Process, error) {
	if spec.Binary == "" {
		return nil, fmt.Errorf("no binary configured for %s application", spec.Kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	host := spec.DebugHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := spec.DebugPort
	if port == 0 {
		p, err := freePort(host)
		if err != nil {
			return nil, fmt.Errorf("failed to pick debug port: %w", err)
		}
		port = p
	}

	var cleanups []func()
	userDataDir := spec.UserDataDir
	if userDataDir == "" {
		dir, err := os.MkdirTemp("", "smoke-user-")
		if err != nil {
			return nil, fmt.Errorf("failed to create user data dir: %w", err)
		}
		userDataDir = dir
		cleanups = append(cleanups, func() { os.RemoveAll(dir) })
	}

	if len(spec.Settings) > 0 {
		if err := SeedUserSettings(userDataDir, spec.Settings); err != nil {
			runCleanups(cleanups)
			return nil, err
		}
	}

	args := launchArgs(spec, host, port, userDataDir)
	env := append(os.Environ(), spec.Env...)
	if spec.Kind == "command" {
		env = append(env,
			"SMOKE_DEBUG_PORT="+strconv.Itoa(port),
			"SMOKE_USER_DATA_DIR="+userDataDir,
		)
	}

	cmd := exec.Command(spec.Binary, args...)
	if spec.Workspace != "" {
		cmd.Dir = spec.Workspace
	}
	cmd.Env = env
	configureProcess(cmd)

	if l.LogDir != "" {
		if err := os.MkdirAll(l.LogDir, 0755); err != nil {
			runCleanups(cleanups)
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		logFile, err := os.OpenFile(filepath.Join(l.LogDir, applog.FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			runCleanups(cleanups)
			return nil, fmt.Errorf("failed to open app log: %w", err)
		}
		fmt.Fprintf(logFile, "=== %s %v ===\n", spec.Binary, args)
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		cleanups = append(cleanups, func() { logFile.Close() })
	}

	if err := cmd.Start(); err != nil {
		runCleanups(cleanups)
		return nil, fmt.Errorf("failed to start %s: %w", spec.Binary, err)
	}

	l.logger.Info().
		Int("pid", cmd.Process.Pid).
		Str("binary", spec.Binary).
		Int("debug_port", port).
		Str("user_data_dir", userDataDir).
		Msg("Application process launched")

	return &execProcess{
		cmd:      cmd,
		endpoint: fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port))),
		cleanups: cleanups,
	}, nil
}

// launchArgs builds the command line for the application kind. The "command"
// kind runs a wrapper script unchanged; it receives the port and profile
// directory through SMOKE_DEBUG_PORT and SMOKE_USER_DATA_DIR instead.
func launchArgs(spec models.LaunchSpec, host string, port int, userDataDir string) []string {
	if spec.Kind == "command" {
		return append([]string(nil), spec.Args...)
	}

	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(port),
		"--remote-debugging-address=" + host,
		"--user-data-dir=" + userDataDir,
	}

	switch spec.Kind {
	case "browser":
		args = append(args, "--no-first-run", "--no-default-browser-check", "--disable-extensions")
		if spec.Headless {
			args = append(args, "--headless=new")
		}
		args = append(args, spec.Args...)
		if spec.URL != "" {
			args = append(args, spec.URL)
		}
	default:
		args = append(args,
			"--extensions-dir="+filepath.Join(userDataDir, "extensions"),
			"--skip-getting-started",
			"--skip-release-notes",
			"--disable-telemetry",
			"--disable-updates",
			"--disable-workspace-trust",
		)
		if spec.Headless {
			args = append(args, "--disable-gpu")
		}
		args = append(args, spec.Args...)
		if spec.Workspace != "" {
			args = append(args, spec.Workspace)
		}
	}
	return args
}

func freePort(host string) (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func runCleanups(cleanups []func()) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// execProcess is a launched child. Wait must be called exactly once.
type execProcess struct {
	cmd      *exec.Cmd
	endpoint string
	cleanups []func()
	once     sync.Once
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	p.once.Do(func() { runCleanups(p.cleanups) })
	return err
}

func (p *execProcess) Terminate() error {
	return terminateProcessTree(p.cmd)
}

func (p *execProcess) Kill() error {
	return killProcessTree(p.cmd)
}

func (p *execProcess) DebugEndpoint() string { return p.endpoint }

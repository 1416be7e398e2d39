//go:build !windows

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/interfaces"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// TestHelperProcess is not a real test. It is the application under test for
// the exec launcher tests, started as a child of the test binary.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SMOKE_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("SMOKE_HELPER_MODE") {
	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
	default:
		// SIGTERM ends the process normally
	}

	fmt.Println("helper ready")
	fmt.Println("port=" + os.Getenv("SMOKE_DEBUG_PORT"))
	time.Sleep(time.Minute)
	os.Exit(0)
}

// logConnector waits for the helper to report readiness in app.log and hands
// back a driver that always finds the ready selector
type logConnector struct {
	logPath string
}

func (c logConnector) Connect(ctx context.Context, proc interfaces.Process) (interfaces.Driver, error) {
	for {
		data, _ := os.ReadFile(c.logPath)
		if strings.Contains(string(data), "helper ready") {
			return &stubDriver{}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

type stubDriver struct{}

func (d *stubDriver) QueryAll(ctx context.Context, sel models.Selector) ([]models.ElementHandle, error) {
	return []models.ElementHandle{{Selector: sel}}, nil
}
func (d *stubDriver) Click(ctx context.Context, el models.ElementHandle) error { return nil }
func (d *stubDriver) TypeText(ctx context.Context, text string) error { return nil }
func (d *stubDriver) KeyPress(ctx context.Context, chord models.KeyChord) error { return nil }
func (d *stubDriver) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }
func (d *stubDriver) Snapshot(ctx context.Context) (string, error) { return "", nil }
func (d *stubDriver) Shutdown(ctx context.Context) error { return nil }
func (d *stubDriver) Close() error { return nil }

func newHelperSession(t *testing.T, mode string) (*Session, string) {
	t.Helper()
	logDir := t.TempDir()
	logger := arbor.NewLogger()

	opts := Options{
		Spec: models.LaunchSpec{
			Kind:   "command",
			Binary: os.Args[0],
			Args:   []string{"-test.run=^TestHelperProcess$"},
			Env:    []string{"SMOKE_HELPER_PROCESS=1", "SMOKE_HELPER_MODE=" + mode},
		},
		ReadySelector:  "body",
		StartupTimeout: 10 * time.Second,
		ShutdownGrace:  400 * time.Millisecond,
		KillTimeout:    5 * time.Second,
	}
	w := waiter.NewWaiter(logger, time.Second, 100*time.Millisecond, 100*time.Millisecond)
	logPath := filepath.Join(logDir, "app.log")
	s := NewSession(opts, NewExecLauncher(logDir, logger), logConnector{logPath: logPath}, w, logger)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, logPath
}

func processGone(pid int) bool {
	return syscall.Kill(pid, 0) == syscall.ESRCH
}

func TestExecSession_StopTerminates(t *testing.T) {
	s, logPath := newHelperSession(t, "exit-on-term")
	require.NoError(t, s.Start(context.Background()))
	pid := s.Pid()

	err := s.Stop(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.SessionStopped, s.State())
	assert.True(t, processGone(pid), "process %d survived stop", pid)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Regexp(t, `port=\d+`, string(data), "command kind gets the debug port through the environment")
}

func TestExecSession_StopKillsProcessIgnoringTerm(t *testing.T) {
	s, _ := newHelperSession(t, "ignore-term")
	require.NoError(t, s.Start(context.Background()))
	pid := s.Pid()

	err := s.Stop(context.Background())

	var shutdownErr *models.ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
	assert.True(t, shutdownErr.Forced)
	assert.Equal(t, pid, shutdownErr.Pid)
	assert.Equal(t, models.SessionStopped, s.State())
	assert.True(t, processGone(pid), "process %d survived forced stop", pid)
}

func TestExecSession_CrashDetected(t *testing.T) {
	s, _ := newHelperSession(t, "exit-on-term")
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, syscall.Kill(s.Pid(), syscall.SIGKILL))

	require.Eventually(t, func() bool {
		return s.State() == models.SessionCrashed
	}, 5*time.Second, 20*time.Millisecond)
	_, err := s.Driver()
	assert.ErrorIs(t, err, models.ErrSessionCrashed)
}

func TestExecLauncher_MissingBinary(t *testing.T) {
	launcher := NewExecLauncher("", arbor.NewLogger())

	_, err := launcher.Launch(context.Background(), models.LaunchSpec{Kind: "electron"})
	assert.Error(t, err)

	_, err = launcher.Launch(context.Background(), models.LaunchSpec{Kind: "electron", Binary: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestLaunchArgs(t *testing.T) {
	electron := launchArgs(models.LaunchSpec{Kind: "electron", Workspace: "/ws", Args: []string{"--verbose"}}, "127.0.0.1", 9222, "/profile")
	assert.Equal(t, "--remote-debugging-port=9222", electron[0])
	assert.Contains(t, electron, "--user-data-dir=/profile")
	assert.Contains(t, electron, "--extensions-dir=/profile/extensions")
	assert.Equal(t, "/ws", electron[len(electron)-1], "workspace is the last argument")
	assert.Equal(t, "--verbose", electron[len(electron)-2])

	browser := launchArgs(models.LaunchSpec{Kind: "browser", URL: "http://localhost:3000", Headless: true}, "127.0.0.1", 9333, "/p")
	assert.Contains(t, browser, "--headless=new")
	assert.Equal(t, "http://localhost:3000", browser[len(browser)-1])

	command := launchArgs(models.LaunchSpec{Kind: "command", Args: []string{"run.sh"}}, "127.0.0.1", 1, "/p")
	assert.Equal(t, []string{"run.sh"}, command)
}

func TestSeedUserSettings(t *testing.T) {
	dir := t.TempDir()
	userDir := filepath.Join(dir, "User")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "settings.json"), []byte("{\n  // keep\n  \"editor.fontSize\": 12,\n}"), 0644))

	err := SeedUserSettings(dir, map[string]any{
		"css.lint.emptyRules": "error",
		"window.zoomLevel":    int64(1),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(userDir, "settings.json"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "error", got["css.lint.emptyRules"])
	assert.Equal(t, float64(1), got["window.zoomLevel"])
	assert.Equal(t, float64(12), got["editor.fontSize"])
}

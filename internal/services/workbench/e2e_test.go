package workbench

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/automation/cdp"
	"github.com/ternarybob/smoke/internal/models"
	"github.com/ternarybob/smoke/internal/services/capture"
	"github.com/ternarybob/smoke/internal/services/input"
	"github.com/ternarybob/smoke/internal/services/locator"
	"github.com/ternarybob/smoke/internal/services/runner"
	"github.com/ternarybob/smoke/internal/services/runner/runnertest"
	"github.com/ternarybob/smoke/internal/services/session"
	"github.com/ternarybob/smoke/internal/services/waiter"
)

// TestCSSSuite_RealEditor drives an installed editor over the DevTools
// protocol. Set SMOKE_APP_BINARY to the editor executable to enable it.
func TestCSSSuite_RealEditor(t *testing.T) {
	binary := os.Getenv("SMOKE_APP_BINARY")
	if binary == "" {
		t.Skip("SMOKE_APP_BINARY not set")
	}

	workspace, err := filepath.Abs(filepath.Join("..", "..", "..", "test", "fixtures", "workspace"))
	require.NoError(t, err)

	resultsDir := os.Getenv("TEST_RESULTS_DIR")
	if resultsDir == "" {
		resultsDir = t.TempDir()
	}

	logger := arbor.NewLogger()
	w := waiter.NewWaiter(logger, 20*time.Second, 250*time.Millisecond, 100*time.Millisecond)
	s := session.NewSession(session.Options{
		Spec: models.LaunchSpec{
			Kind:      "electron",
			Binary:    binary,
			Workspace: workspace,
			Headless:  os.Getenv("SMOKE_HEADLESS") == "true",
			Env:       []string{"SMOKE_ARTIFACTS_DIR=" + resultsDir},
		},
		ReadySelector:  Root,
		StartupTimeout: 90 * time.Second,
	}, session.NewExecLauncher(resultsDir, logger), cdp.NewConnector(w, logger), w, logger)

	loc := locator.NewLocator(s, w, logger)
	deps := runner.Deps{
		Session:  s,
		Locator:  loc,
		Input:    input.NewService(s, loc, 0, logger),
		Waiter:   w,
		Capturer: capture.NewCapturer(s, nil, "e2e", capture.Options{Dir: resultsDir, CaptureDOM: true, CaptureMarkdown: true}, logger),
	}

	runnertest.Run(t, runner.NewRunner(deps, runner.Options{RunID: "e2e", SuiteTimeout: 5 * time.Minute}, logger), CSSSuite())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/smoke/internal/app"
	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/services/report"
	"github.com/ternarybob/smoke/internal/services/runner"
	"github.com/ternarybob/smoke/internal/services/scenario"
	"github.com/ternarybob/smoke/internal/services/workbench"
)

var errRunFailed = errors.New("one or more scenarios failed")

var runCmd = &cobra.Command{
	Use:   "run [suite.yaml ...]",
	Short: "Run smoke suites against the application",
	Long: `Runs the given scenario files. Without arguments every *.yaml file in
suite.scenarios_dir is run, falling back to the built-in CSS suite when the
directory holds none.`,
	RunE: runSuites,
}

var (
	builtin     bool
	showSummary bool
)

func init() {
	runCmd.Flags().BoolVar(&builtin, "builtin", false, "Run the built-in CSS suite instead of scenario files")
	runCmd.Flags().BoolVar(&showSummary, "show-summary", false, "Print the markdown summary when the run ends")
}

func runSuites(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd, common.FlagOverrides{}); err != nil {
		return err
	}

	suites, err := selectSuites(args)
	if err != nil {
		return err
	}
	return execute(suites)
}

// selectSuites compiles the suites named on the command line, or the
// configured scenarios directory, or the built-in suite
func selectSuites(args []string) ([]runner.Suite, error) {
	if builtin {
		return []runner.Suite{workbench.CSSSuite()}, nil
	}

	var files []*scenario.SuiteFile
	if len(args) > 0 {
		for _, path := range args {
			f, err := scenario.Load(path)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	} else if config.Suite.ScenariosDir != "" {
		loaded, err := scenario.LoadDir(config.Suite.ScenariosDir)
		if err != nil && !errors.Is(err, scenario.ErrNoSuites) {
			return nil, err
		}
		files = loaded
	}

	if len(files) == 0 {
		logger.Info().Msg("No scenario files found, running the built-in CSS suite")
		return []runner.Suite{workbench.CSSSuite()}, nil
	}

	suites := make([]runner.Suite, 0, len(files))
	for _, f := range files {
		s, err := scenario.Compile(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path(), err)
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// execute runs suites in a harness built from the loaded config. Ctrl+C
// cancels the run; the current session is still stopped.
func execute(suites []runner.Suite) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, runID, runDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize harness: %w", err)
	}
	defer application.Close()

	reports := application.RunSuites(ctx, suites...)

	if showSummary && config.Report.Summary {
		if md, err := os.ReadFile(filepath.Join(runDir, report.SummaryMDFile)); err == nil {
			application.Console.Markdown(md)
		}
	}

	logger.Info().Str("results", runDir).Msg("Results written")

	if len(reports) < len(suites) || !app.Passed(reports) {
		return errRunFailed
	}
	return nil
}

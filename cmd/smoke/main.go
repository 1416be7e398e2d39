package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/common"
)

var (
	// Persistent flags
	configFiles  []string
	kindFlag     string
	binaryFlag   string
	workspace    string
	artifactsDir string
	logLevel     string
	headless     bool

	// Global state, set by loadConfig
	config *common.Config
	logger arbor.ILogger
	runID  string
	runDir string
)

var rootCmd = &cobra.Command{
	Use:           "smoke",
	Short:         "UI smoke tests for the editor",
	Long:          `Launches the editor under test, drives it through keyboard and mouse input and records screenshots and reports for every scenario.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be repeated, later files override earlier ones)")
	flags.StringVar(&kindFlag, "kind", "", "Application kind: electron, browser, command or sim")
	flags.StringVar(&binaryFlag, "binary", "", "Application binary (overrides config)")
	flags.StringVar(&workspace, "workspace", "", "Workspace opened by the application (overrides config)")
	flags.StringVar(&artifactsDir, "artifacts-dir", "", "Results directory (overrides config)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.BoolVar(&headless, "headless", false, "Run the application without a visible window")

	rootCmd.AddCommand(runCmd, selftestCmd, validateCmd, versionCmd)
}

// loadConfig runs the startup sequence in order:
// config files, env, flag overrides, validation, logger, banner.
func loadConfig(cmd *cobra.Command, overrides common.FlagOverrides) error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("smoke.toml"); err == nil {
			configFiles = append(configFiles, "smoke.toml")
		} else if _, err := os.Stat("deployments/local/smoke.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/smoke.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}

	if overrides.Kind == "" {
		overrides.Kind = kindFlag
	}
	overrides.Binary = binaryFlag
	if overrides.Workspace == "" {
		overrides.Workspace = workspace
	}
	overrides.ArtifactsDir = artifactsDir
	overrides.LogLevel = logLevel
	if cmd.Flags().Changed("headless") {
		overrides.Headless = &headless
	}
	common.ApplyFlagOverrides(config, overrides)

	if err := config.Validate(); err != nil {
		return err
	}

	runID = common.NewRunID(time.Now())
	runDir = filepath.Join(config.Artifacts.Dir, runID)

	logger = common.InitLogger(config, runDir)
	common.PrintBanner()

	logger.Info().
		Strs("config_files", configFiles).
		Str("kind", config.App.Kind).
		Str("workspace", config.App.Workspace).
		Bool("headless", config.App.Headless).
		Str("run_id", runID).
		Msg("Configuration loaded")

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "smoke:", err)
		os.Exit(1)
	}
}

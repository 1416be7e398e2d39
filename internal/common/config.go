package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the harness configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "ci" - ci forces headless
	App         AppConfig       `toml:"app"`
	Wait        WaitConfig      `toml:"wait"`
	Input       InputConfig     `toml:"input"`
	Artifacts   ArtifactsConfig `toml:"artifacts"`
	Suite       SuiteConfig     `toml:"suite"`
	Report      ReportConfig    `toml:"report"`
	Logging     LoggingConfig   `toml:"logging"`
}

// AppConfig describes how to launch and reach the application under test
type AppConfig struct {
	Kind           string         `toml:"kind" validate:"required,oneof=electron browser command sim"` // "electron", "browser" (chrome + url), "command" (wrapper script), "sim" (built-in simulator)
	Binary         string         `toml:"binary" validate:"required_unless=Kind sim"`                  // Executable to launch
	Args           []string       `toml:"args"`                                                        // Extra arguments appended after the harness arguments
	URL            string         `toml:"url" validate:"required_if=Kind browser"`                     // Page opened by the browser kind
	Workspace      string         `toml:"workspace"`                                                   // Fixture directory opened by the application
	UserDataDir    string         `toml:"user_data_dir"`                                               // Isolated profile directory (default: temp dir per session)
	DebugHost      string         `toml:"debug_host"`                                                  // DevTools host (default: 127.0.0.1)
	DebugPort      int            `toml:"debug_port" validate:"min=0,max=65535"`                       // DevTools port, 0 picks a free port
	ReadySelector  string         `toml:"ready_selector" validate:"required"`                          // Element whose presence means the UI is ready
	Headless       bool           `toml:"headless"`                                                    // Run without a visible window
	StartupTimeout string         `toml:"startup_timeout" validate:"duration"`                         // e.g. "60s"
	ShutdownGrace  string         `toml:"shutdown_grace" validate:"duration"`                          // Time allowed for a graceful exit before kill
	KillTimeout    string         `toml:"kill_timeout" validate:"duration"`                            // Time allowed for the process to die after kill
	Env            []string       `toml:"env"`                                                         // Extra KEY=VALUE entries for the process
	Settings       map[string]any `toml:"settings"`                                                    // Seeded into <user_data_dir>/User/settings.json before launch
}

// WaitConfig holds polling defaults
type WaitConfig struct {
	Timeout     string `toml:"timeout" validate:"duration"`      // Default wait budget (default: "10s")
	Interval    string `toml:"interval" validate:"duration"`     // Default poll cadence (default: "100ms")
	MinInterval string `toml:"min_interval" validate:"duration"` // Floor for any poll cadence (default: "100ms")
}

// InputConfig controls synthetic input
type InputConfig struct {
	KeystrokesPerSecond int `toml:"keystrokes_per_second" validate:"min=0"` // 0 = unpaced
}

// ArtifactsConfig controls snapshot capture and storage
type ArtifactsConfig struct {
	Dir             string `toml:"dir" validate:"required"`             // Base results directory
	CaptureDOM      bool   `toml:"capture_dom"`                         // Write the DOM snapshot next to the screenshot
	CaptureMarkdown bool   `toml:"capture_markdown"`                    // Write a Markdown rendition of the DOM
	CaptureTimeout  string `toml:"capture_timeout" validate:"duration"` // Bound on a single capture
	Index           bool   `toml:"index"`                               // Keep a badger index of artifacts under the run dir
}

// SuiteConfig controls suite execution
type SuiteConfig struct {
	Timeout         string `toml:"timeout" validate:"duration"`          // Whole-suite budget (default: "10m")
	TeardownTimeout string `toml:"teardown_timeout" validate:"duration"` // Budget for stop after the suite context ends
	ScenariosDir    string `toml:"scenarios_dir"`                        // Directory scanned for *.yaml suites
	FailFast        bool   `toml:"fail_fast"`                            // Stop after the first failed scenario
}

// ReportConfig selects the report outputs
type ReportConfig struct {
	JUnit   bool `toml:"junit"`   // junit.xml
	Summary bool `toml:"summary"` // summary.json + summary.md
	HTML    bool `toml:"html"`    // summary.html rendered from summary.md
	Metrics bool `toml:"metrics"` // metrics.prom textfile
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`                                             // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                        // default: "15:04:05"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		App: AppConfig{
			Kind:           "electron",
			DebugHost:      "127.0.0.1",
			ReadySelector:  ".monaco-workbench",
			Headless:       false,
			StartupTimeout: "60s",
			ShutdownGrace:  "10s",
			KillTimeout:    "5s",
		},
		Wait: WaitConfig{
			Timeout:     "10s",
			Interval:    "100ms",
			MinInterval: "100ms",
		},
		Artifacts: ArtifactsConfig{
			Dir:             "./results",
			CaptureDOM:      true,
			CaptureMarkdown: true,
			CaptureTimeout:  "5s",
			Index:           true,
		},
		Suite: SuiteConfig{
			Timeout:         "10m",
			TeardownTimeout: "30s",
			ScenariosDir:    "./scenarios",
		},
		Report: ReportConfig{
			JUnit:   true,
			Summary: true,
			HTML:    true,
			Metrics: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// CLI overrides are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges into the existing values
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SMOKE_ENV"); env != "" {
		config.Environment = env
	} else if os.Getenv("CI") != "" {
		config.Environment = "ci"
	}

	// Application
	if kind := os.Getenv("SMOKE_APP_KIND"); kind != "" {
		config.App.Kind = kind
	}
	if binary := os.Getenv("SMOKE_APP_BINARY"); binary != "" {
		config.App.Binary = binary
	}
	if url := os.Getenv("SMOKE_APP_URL"); url != "" {
		config.App.URL = url
	}
	if workspace := os.Getenv("SMOKE_WORKSPACE"); workspace != "" {
		config.App.Workspace = workspace
	}
	if headless := os.Getenv("SMOKE_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.App.Headless = b
		}
	}
	if port := os.Getenv("SMOKE_DEBUG_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.App.DebugPort = p
		}
	}
	if timeout := os.Getenv("SMOKE_STARTUP_TIMEOUT"); timeout != "" {
		config.App.StartupTimeout = timeout
	}

	// Waits
	if timeout := os.Getenv("SMOKE_WAIT_TIMEOUT"); timeout != "" {
		config.Wait.Timeout = timeout
	}
	if interval := os.Getenv("SMOKE_WAIT_INTERVAL"); interval != "" {
		config.Wait.Interval = interval
	}

	// Artifacts - TEST_RESULTS_DIR is set by CI runners, SMOKE_ARTIFACTS_DIR wins
	if dir := os.Getenv("TEST_RESULTS_DIR"); dir != "" {
		config.Artifacts.Dir = dir
	}
	if dir := os.Getenv("SMOKE_ARTIFACTS_DIR"); dir != "" {
		config.Artifacts.Dir = dir
	}

	// Suite
	if timeout := os.Getenv("SMOKE_SUITE_TIMEOUT"); timeout != "" {
		config.Suite.Timeout = timeout
	}

	// Logging
	if level := os.Getenv("SMOKE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SMOKE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if config.Environment == "ci" {
		config.App.Headless = true
	}
}

// FlagOverrides carries command-line values; zero values leave config untouched
type FlagOverrides struct {
	Binary       string
	Workspace    string
	ArtifactsDir string
	LogLevel     string
	Headless     *bool
	Kind         string
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.Kind != "" {
		config.App.Kind = flags.Kind
	}
	if flags.Binary != "" {
		config.App.Binary = flags.Binary
	}
	if flags.Workspace != "" {
		config.App.Workspace = flags.Workspace
	}
	if flags.ArtifactsDir != "" {
		config.Artifacts.Dir = flags.ArtifactsDir
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
	if flags.Headless != nil {
		config.App.Headless = *flags.Headless
	}
}

// NewValidator returns a validator with the "duration" tag registered
func NewValidator() (*validator.Validate, error) {
	validate := validator.New()
	if err := validate.RegisterValidation("duration", validateDuration); err != nil {
		return nil, fmt.Errorf("failed to register duration validator: %w", err)
	}
	return validate, nil
}

// Validate checks the configuration using go-playground/validator
func (c *Config) Validate() error {
	validate, err := NewValidator()
	if err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validateDuration accepts empty strings (defaults apply) and Go duration strings
func validateDuration(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := time.ParseDuration(s)
	return err == nil && d >= 0
}

// ParseDuration parses s, returning fallback when s is empty or malformed
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// StartupTimeoutDuration returns the parsed startup timeout
func (a AppConfig) StartupTimeoutDuration() time.Duration {
	return ParseDuration(a.StartupTimeout, 60*time.Second)
}

// ShutdownGraceDuration returns the parsed graceful shutdown window
func (a AppConfig) ShutdownGraceDuration() time.Duration {
	return ParseDuration(a.ShutdownGrace, 10*time.Second)
}

// KillTimeoutDuration returns the parsed post-kill wait
func (a AppConfig) KillTimeoutDuration() time.Duration {
	return ParseDuration(a.KillTimeout, 5*time.Second)
}

func (w WaitConfig) TimeoutDuration() time.Duration {
	return ParseDuration(w.Timeout, 10*time.Second)
}

func (w WaitConfig) IntervalDuration() time.Duration {
	return ParseDuration(w.Interval, 100*time.Millisecond)
}

func (w WaitConfig) MinIntervalDuration() time.Duration {
	return ParseDuration(w.MinInterval, 100*time.Millisecond)
}

func (a ArtifactsConfig) CaptureTimeoutDuration() time.Duration {
	return ParseDuration(a.CaptureTimeout, 5*time.Second)
}

func (s SuiteConfig) TimeoutDuration() time.Duration {
	return ParseDuration(s.Timeout, 10*time.Minute)
}

func (s SuiteConfig) TeardownTimeoutDuration() time.Duration {
	return ParseDuration(s.TeardownTimeout, 30*time.Second)
}

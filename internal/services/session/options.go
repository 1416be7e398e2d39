package session

import (
	"strconv"
	"time"

	"github.com/ternarybob/smoke/internal/common"
	"github.com/ternarybob/smoke/internal/models"
)

// Options configure one session
type Options struct {
	Spec           models.LaunchSpec
	ReadySelector  models.Selector
	StartupTimeout time.Duration
	ShutdownGrace  time.Duration
	KillTimeout    time.Duration
}

// OptionsFromConfig builds session options from the [app] section.
// artifactsDir is exported to the application as SMOKE_ARTIFACTS_DIR.
func OptionsFromConfig(cfg common.AppConfig, artifactsDir string) Options {
	env := append([]string{
		"SMOKE_HEADLESS=" + strconv.FormatBool(cfg.Headless),
		"SMOKE_ARTIFACTS_DIR=" + artifactsDir,
	}, cfg.Env...)

	return Options{
		Spec: models.LaunchSpec{
			Kind:        cfg.Kind,
			Binary:      cfg.Binary,
			Args:        cfg.Args,
			URL:         cfg.URL,
			Workspace:   cfg.Workspace,
			UserDataDir: cfg.UserDataDir,
			DebugHost:   cfg.DebugHost,
			DebugPort:   cfg.DebugPort,
			Headless:    cfg.Headless,
			Env:         env,
			Settings:    cfg.Settings,
		},
		ReadySelector:  models.Selector(cfg.ReadySelector),
		StartupTimeout: cfg.StartupTimeoutDuration(),
		ShutdownGrace:  cfg.ShutdownGraceDuration(),
		KillTimeout:    cfg.KillTimeoutDuration(),
	}
}

func (o Options) withDefaults() Options {
	if o.ReadySelector == "" {
		o.ReadySelector = ".monaco-workbench"
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = 60 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 10 * time.Second
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = 5 * time.Second
	}
	return o
}

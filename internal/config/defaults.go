package config

import (
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
	"git.home.luguber.info/inful/cubepio/internal/retry"
)

// DefaultApplier applies defaults for one configuration section.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type appDefaults struct{}

func (appDefaults) Domain() string { return "app" }

func (appDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.App.PlatformIOCmd == "" {
		cfg.App.PlatformIOCmd = "platformio"
	}
	if cfg.App.CubeMXCmd == "" {
		cfg.App.CubeMXCmd = "STM32CubeMX"
	}
	// An empty java_cmd runs CubeMX directly.
	return nil
}

type projectDefaults struct{}

func (projectDefaults) Domain() string { return "project" }

func (projectDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Project.CubeMXScriptContent == "" {
		cfg.Project.CubeMXScriptContent = projectconfig.DefaultCubeMXScript
	}
	if cfg.Project.PlatformIOINIPatchContent == "" {
		cfg.Project.PlatformIOINIPatchContent = projectconfig.DefaultPlatformIOPatch
	}
	return nil
}

type daemonDefaults struct{}

func (daemonDefaults) Domain() string { return "daemon" }

func (daemonDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Daemon.StorePath == "" {
		cfg.Daemon.StorePath = "cubepio.db"
	}
	if cfg.Daemon.WatchDebounce == "" {
		cfg.Daemon.WatchDebounce = "500ms"
	}
	if cfg.Daemon.RefreshInterval == "" {
		cfg.Daemon.RefreshInterval = "1m"
	}
	return nil
}

type notificationDefaults struct{}

func (notificationDefaults) Domain() string { return "notifications" }

func (notificationDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Notifications.SubjectPrefix == "" {
		cfg.Notifications.SubjectPrefix = "cubepio.events"
	}
	r := &cfg.Notifications.Retry
	if *r == (RetryConfig{}) {
		r.MaxRetries = 3
	}
	if r.Mode == "" {
		r.Mode = string(retry.ModeExponential)
	}
	if r.Initial == "" {
		r.Initial = "100ms"
	}
	if r.MaxDelay == "" {
		r.MaxDelay = "2s"
	}
	return nil
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	return nil
}

var appliers = []DefaultApplier{
	appDefaults{},
	projectDefaults{},
	daemonDefaults{},
	notificationDefaults{},
	loggingDefaults{},
}

func applyDefaults(cfg *Config) error {
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the configuration written by "cubepio init-config".
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.Daemon.Watch = true
	_ = applyDefaults(cfg)
	return cfg
}

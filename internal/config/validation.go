package config

import (
	"fmt"
	"time"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/pioini"
	"git.home.luguber.info/inful/cubepio/internal/retry"
)

func validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{v.validateApp, v.validateProject, v.validateDaemon, v.validateNotifications} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateApp() error {
	if cv.config.App.PlatformIOCmd == "" || cv.config.App.CubeMXCmd == "" {
		return ferrors.ConfigError("app.platformio_cmd and app.cubemx_cmd must not be empty").Build()
	}
	return nil
}

func (cv *configurationValidator) validateProject() error {
	if _, err := pioini.Parse(cv.config.Project.PlatformIOINIPatchContent); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid project.platformio_ini_patch_content").Build()
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	for name, raw := range map[string]string{
		"daemon.watch_debounce":   d.WatchDebounce,
		"daemon.refresh_interval": d.RefreshInterval,
	} {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, fmt.Sprintf("invalid duration for %s", name)).Build()
		}
		if v < 0 {
			return ferrors.ConfigError(fmt.Sprintf("%s must not be negative", name)).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateNotifications() error {
	r := cv.config.Notifications.Retry
	switch retry.Mode(r.Mode) {
	case retry.ModeFixed, retry.ModeLinear, retry.ModeExponential:
	default:
		return ferrors.ConfigError(fmt.Sprintf("unknown notifications.retry.mode %q", r.Mode)).Build()
	}
	for name, raw := range map[string]string{
		"notifications.retry.initial":   r.Initial,
		"notifications.retry.max_delay": r.MaxDelay,
	} {
		if v, err := time.ParseDuration(raw); err != nil || v <= 0 {
			return ferrors.ConfigError(fmt.Sprintf("%s must be a positive duration", name)).Build()
		}
	}
	if r.MaxRetries < 0 {
		return ferrors.ConfigError("notifications.retry.max_retries cannot be negative").Build()
	}
	return nil
}

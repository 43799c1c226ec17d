// Package config loads the tool-wide cubepio configuration (YAML).
//
// Loading order: .env files, ${VAR} expansion of the file, YAML decode,
// normalization, defaults, CUBEPIO_* environment overrides, validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
	"git.home.luguber.info/inful/cubepio/internal/retry"
)

// CurrentVersion is the only configuration version understood.
const CurrentVersion = "1"

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "cubepio.yaml"

// Config is the tool-wide configuration.
type Config struct {
	Version       string                `yaml:"version"`
	App           projectconfig.App     `yaml:"app"`
	Project       projectconfig.Project `yaml:"project"`
	Daemon        DaemonConfig          `yaml:"daemon"`
	Notifications NotificationsConfig   `yaml:"notifications"`
	Logging       LoggingConfig         `yaml:"logging"`
}

// DaemonConfig configures "cubepio serve".
type DaemonConfig struct {
	StorePath       string `yaml:"store_path"`       // SQLite file; project list and event history
	Watch           bool   `yaml:"watch"`            // recompute stages on file changes
	WatchDebounce   string `yaml:"watch_debounce"`   // quiet period before a watch-triggered recompute
	RefreshInterval string `yaml:"refresh_interval"` // periodic recompute of all projects; "0" disables
	MetricsAddr     string `yaml:"metrics_addr"`     // Prometheus listener, empty disables
	RecordEvents    bool   `yaml:"record_events"`    // persist every project event in the store
}

// NotificationsConfig configures the optional NATS bridge.
type NotificationsConfig struct {
	NATSURL       string      `yaml:"nats_url"`
	SubjectPrefix string      `yaml:"subject_prefix"`
	Retry         RetryConfig `yaml:"retry"`
}

// RetryConfig is the publish retry policy of the NATS bridge. An omitted
// block gets the defaults; max_retries 0 disables retries.
type RetryConfig struct {
	Mode       string `yaml:"mode"` // fixed|linear|exponential
	Initial    string `yaml:"initial"`
	MaxDelay   string `yaml:"max_delay"`
	MaxRetries int    `yaml:"max_retries"`
}

// Policy converts the block into a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	initial, _ := time.ParseDuration(r.Initial)
	maxDelay, _ := time.ParseDuration(r.MaxDelay)
	return retry.NewPolicy(retry.Mode(r.Mode), initial, maxDelay, r.MaxRetries)
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// WatchDebounceDuration returns the parsed daemon.watch_debounce.
func (d DaemonConfig) WatchDebounceDuration() time.Duration {
	v, _ := time.ParseDuration(d.WatchDebounce)
	return v
}

// RefreshIntervalDuration returns the parsed daemon.refresh_interval; zero disables.
func (d DaemonConfig) RefreshIntervalDuration() time.Duration {
	v, _ := time.ParseDuration(d.RefreshInterval)
	return v
}

// ProjectDefaults returns the settings every project inherits before its own
// cubepio.toml is applied.
func (c *Config) ProjectDefaults() projectconfig.File {
	return projectconfig.File{App: c.App, Project: c.Project}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	LoadDotEnv(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ferrors.NotFoundError("configuration file not found").
			WithContext("path", path).
			Build()
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// LoadOptional behaves like Load but falls back to defaults when the file
// does not exist. found reports whether a file was read.
func LoadOptional(path string) (cfg *Config, found bool, err error) {
	cfg, err = Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !ferrors.HasCategory(err, ferrors.CategoryNotFound) {
		return nil, false, err
	}
	cfg = Default()
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Parse decodes YAML content. Environment references (${VAR}) are expanded first.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
	}
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).Build()
	}

	normalize(cfg)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes the default configuration to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.AlreadyExistsError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", path).
			Build()
	}
	return nil
}

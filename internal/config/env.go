package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment overrides applied after the file is decoded.
const (
	EnvPlatformIOCmd = "CUBEPIO_PLATFORMIO_CMD"
	EnvCubeMXCmd     = "CUBEPIO_CUBEMX_CMD"
	EnvJavaCmd       = "CUBEPIO_JAVA_CMD"
	EnvNATSURL       = "CUBEPIO_NATS_URL"
	EnvLogLevel      = "CUBEPIO_LOG_LEVEL"
)

// LoadDotEnv loads .env and .env.local next to the configuration file and in
// the working directory. Variables already set in the process win.
func LoadDotEnv(configPath string) {
	dirs := []string{"."}
	if dir := filepath.Dir(configPath); dir != "." {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		for _, name := range []string{".env", ".env.local"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := godotenv.Load(path); err != nil {
				slog.Warn("Failed to load env file", "path", path, "error", err)
				continue
			}
			slog.Debug("Loaded env file", "path", path)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.App.PlatformIOCmd, EnvPlatformIOCmd)
	set(&cfg.App.CubeMXCmd, EnvCubeMXCmd)
	set(&cfg.App.JavaCmd, EnvJavaCmd)
	set(&cfg.Notifications.NATSURL, EnvNATSURL)
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = NormalizeLogLevel(v)
	}
}

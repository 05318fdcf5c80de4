// Package config provides the watcher's configuration through environment
// variables. The values become the defaults of the command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ListenAddress is the address serving /live, /json and /metrics.
	ListenAddress string
	// HealthProbeBindAddress is the address serving /healthz and /readyz.
	HealthProbeBindAddress string

	// RefreshInterval is the period between scheduled snapshot rebuilds.
	RefreshInterval time.Duration
	// APITimeout bounds every request to the Kubernetes API server.
	APITimeout time.Duration

	// EmitEvents records a Warning event on secrets whose certificate cannot be decoded.
	EmitEvents bool

	// LogDevelopment switches the logger to human-readable development output.
	LogDevelopment bool
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		ListenAddress:          env.GetString("LISTEN_ADDRESS", ":8080"),
		HealthProbeBindAddress: env.GetString("HEALTH_PROBE_BIND_ADDRESS", ":8081"),

		RefreshInterval: env.GetDuration("REFRESH_INTERVAL_MINUTES", 60, time.Minute),
		APITimeout:      env.GetDuration("API_TIMEOUT_SECONDS", 30, time.Second),

		EmitEvents: env.GetBool("EMIT_EVENTS", false),

		LogDevelopment: env.GetBool("LOG_DEVELOPMENT", false),
	}
}

// loadDotEnv loads the first .env file found walking up from the current
// directory. Variables already set in the environment win.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

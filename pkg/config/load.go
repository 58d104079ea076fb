package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads, defaults, and validates the configuration at path.
// Environment variables are not consulted; use LoadWithEnvOverrides for
// that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWithEnvOverrides loads the file, then applies MERIDIAN_* environment
// variable overrides and re-validates. Environment variables always win
// over file values.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies MERIDIAN_SECTION_FIELD environment variables.
func applyEnvOverrides(cfg *Config) {
	// Server
	if val := os.Getenv("MERIDIAN_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("MERIDIAN_SERVER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if val := os.Getenv("MERIDIAN_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Backend API keys and URLs. Backend names are upper-cased, so
	// MERIDIAN_BACKENDS_OPENAI_API_KEY targets the "openai" backend.
	for name, backend := range cfg.Backends {
		prefix := "MERIDIAN_BACKENDS_" + strings.ToUpper(name)
		if val := os.Getenv(prefix + "_API_KEY"); val != "" {
			backend.APIKey = val
		}
		if val := os.Getenv(prefix + "_BASE_URL"); val != "" {
			backend.BaseURL = val
		}
		cfg.Backends[name] = backend
	}

	// Routing
	if val := os.Getenv("MERIDIAN_ROUTING_STRATEGY"); val != "" {
		cfg.Routing.Strategy = val
	}
	if val := os.Getenv("MERIDIAN_ROUTING_FAILURE_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Routing.FailureThreshold = i
		}
	}
	if val := os.Getenv("MERIDIAN_ROUTING_RECOVERY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Routing.RecoveryTimeout = d
		}
	}

	// Batch
	if val := os.Getenv("MERIDIAN_BATCH_STRATEGY"); val != "" {
		cfg.Batch.Strategy = val
	}
	if val := os.Getenv("MERIDIAN_BATCH_MAX_BATCH_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Batch.MaxBatchSize = i
		}
	}
	if val := os.Getenv("MERIDIAN_BATCH_MAX_WAIT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Batch.MaxWait = d
		}
	}

	// Usage
	if val := os.Getenv("MERIDIAN_USAGE_STORE_PATH"); val != "" {
		cfg.Usage.StorePath = val
	}
	if val := os.Getenv("MERIDIAN_USAGE_FLUSH_SCHEDULE"); val != "" {
		cfg.Usage.FlushSchedule = val
	}

	// Telemetry
	if val := os.Getenv("MERIDIAN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
}

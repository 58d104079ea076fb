package config

import (
	"fmt"
	"net/url"
	"strings"
)

var validBackendKinds = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"local":     true,
}

var validRoutingStrategies = map[string]bool{
	"sequential":    true,
	"random":        true,
	"least_cost":    true,
	"least_latency": true,
	"round_robin":   true,
}

var validBatchStrategies = map[string]bool{
	"immediate":      true,
	"size_based":     true,
	"time_based":     true,
	"cost_optimized": true,
	"hybrid":         true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks cfg for inconsistencies. Call after ApplyDefaults.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateBackends(cfg.Backends); err != nil {
		return err
	}
	if err := validateRouting(&cfg.Routing, cfg.Backends); err != nil {
		return err
	}
	if err := validateBatch(&cfg.Batch); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if !strings.Contains(cfg.ListenAddress, ":") {
		return fmt.Errorf("server.listen_address %q must be host:port", cfg.ListenAddress)
	}
	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	return nil
}

func validateBackends(backends map[string]BackendConfig) error {
	hasEnabled := false
	for name, backend := range backends {
		if !validBackendKinds[backend.Kind] {
			return fmt.Errorf("backend %q: unknown kind %q (valid: openai, anthropic, local)", name, backend.Kind)
		}
		if backend.BaseURL != "" {
			if _, err := url.Parse(backend.BaseURL); err != nil {
				return fmt.Errorf("backend %q: invalid base_url: %w", name, err)
			}
		}
		if backend.Kind != "local" && backend.IsEnabled() && backend.APIKey == "" {
			return fmt.Errorf("backend %q: api_key is required for kind %q", name, backend.Kind)
		}
		if backend.IsEnabled() {
			hasEnabled = true
		}
	}
	if len(backends) > 0 && !hasEnabled {
		return fmt.Errorf("all configured backends are disabled")
	}
	return nil
}

func validateRouting(cfg *RoutingConfig, backends map[string]BackendConfig) error {
	if !validRoutingStrategies[cfg.Strategy] {
		return fmt.Errorf("routing.strategy %q is not valid", cfg.Strategy)
	}
	if cfg.FailureThreshold < 1 {
		return fmt.Errorf("routing.failure_threshold must be at least 1")
	}
	if cfg.RecoveryTimeout <= 0 {
		return fmt.Errorf("routing.recovery_timeout must be positive")
	}
	for _, name := range cfg.Order {
		if _, ok := backends[name]; !ok {
			return fmt.Errorf("routing.order references unknown backend %q", name)
		}
	}
	return nil
}

func validateBatch(cfg *BatchConfig) error {
	if !validBatchStrategies[cfg.Strategy] {
		return fmt.Errorf("batch.strategy %q is not valid", cfg.Strategy)
	}
	if cfg.MinBatchSize > cfg.MaxBatchSize {
		return fmt.Errorf("batch.min_batch_size %d exceeds batch.max_batch_size %d",
			cfg.MinBatchSize, cfg.MaxBatchSize)
	}
	if cfg.MaxWait <= 0 {
		return fmt.Errorf("batch.max_wait must be positive")
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("telemetry.logging.level %q is not valid", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("telemetry.logging.format %q is not valid (json or text)", cfg.Logging.Format)
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("telemetry.metrics.path %q must start with /", cfg.Metrics.Path)
	}
	return nil
}

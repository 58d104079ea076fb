package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
server:
  listen_address: ":9000"
backends:
  openai:
    kind: openai
    api_key: sk-test
  claude:
    kind: anthropic
    api_key: sk-ant-test
  llama:
    kind: local
    base_url: http://localhost:8080
routing:
  strategy: least_cost
  failure_threshold: 3
batch:
  strategy: time_based
  max_wait: 2s
usage:
  store_path: /tmp/usage.db
  flush_schedule: "*/5 * * * *"
telemetry:
  logging:
    level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meridian.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddress != ":9000" {
		t.Errorf("listen address = %q, want :9000", cfg.Server.ListenAddress)
	}
	if len(cfg.Backends) != 3 {
		t.Fatalf("backends = %d, want 3", len(cfg.Backends))
	}
	if cfg.Routing.Strategy != "least_cost" {
		t.Errorf("routing strategy = %q, want least_cost", cfg.Routing.Strategy)
	}
	if cfg.Routing.FailureThreshold != 3 {
		t.Errorf("failure threshold = %d, want 3", cfg.Routing.FailureThreshold)
	}
	if cfg.Batch.MaxWait != 2*time.Second {
		t.Errorf("batch max wait = %v, want 2s", cfg.Batch.MaxWait)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "backends:\n  llama:\n    kind: local\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address = %q, want default", cfg.Server.ListenAddress)
	}
	if cfg.Routing.Strategy != DefaultRoutingStrategy {
		t.Errorf("routing strategy = %q, want default", cfg.Routing.Strategy)
	}
	if cfg.Routing.RecoveryTimeout != DefaultRecoveryTimeout {
		t.Errorf("recovery timeout = %v, want default", cfg.Routing.RecoveryTimeout)
	}
	if cfg.Batch.Strategy != DefaultBatchStrategy {
		t.Errorf("batch strategy = %q, want default", cfg.Batch.Strategy)
	}
	if cfg.Batch.PriorityBoost != DefaultPriorityBoost {
		t.Errorf("priority boost = %v, want default", cfg.Batch.PriorityBoost)
	}
	if got := cfg.Backends["llama"].Timeout; got != DefaultBackendTimeout {
		t.Errorf("backend timeout = %v, want default", got)
	}
	if !cfg.Batch.IsEnabled() || !cfg.Usage.IsEnabled() || !cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("batch, usage, and metrics should default to enabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MERIDIAN_ROUTING_STRATEGY", "round_robin")
	t.Setenv("MERIDIAN_BACKENDS_OPENAI_API_KEY", "sk-from-env")
	t.Setenv("MERIDIAN_BATCH_MAX_WAIT", "250ms")
	t.Setenv("MERIDIAN_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides() error = %v", err)
	}

	if cfg.Routing.Strategy != "round_robin" {
		t.Errorf("routing strategy = %q, want round_robin", cfg.Routing.Strategy)
	}
	if cfg.Backends["openai"].APIKey != "sk-from-env" {
		t.Errorf("openai api key = %q, want env value", cfg.Backends["openai"].APIKey)
	}
	if cfg.Batch.MaxWait != 250*time.Millisecond {
		t.Errorf("batch max wait = %v, want 250ms", cfg.Batch.MaxWait)
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("metrics should be disabled via env")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config passes",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name: "unknown backend kind",
			mutate: func(cfg *Config) {
				cfg.Backends["bad"] = BackendConfig{Kind: "cohere", APIKey: "x"}
			},
			wantErr: "unknown kind",
		},
		{
			name: "remote backend without api key",
			mutate: func(cfg *Config) {
				b := cfg.Backends["openai"]
				b.APIKey = ""
				cfg.Backends["openai"] = b
			},
			wantErr: "api_key is required",
		},
		{
			name: "unknown routing strategy",
			mutate: func(cfg *Config) {
				cfg.Routing.Strategy = "fastest"
			},
			wantErr: "routing.strategy",
		},
		{
			name: "routing order references unknown backend",
			mutate: func(cfg *Config) {
				cfg.Routing.Order = []string{"missing"}
			},
			wantErr: "unknown backend",
		},
		{
			name: "unknown batch strategy",
			mutate: func(cfg *Config) {
				cfg.Batch.Strategy = "aggressive"
			},
			wantErr: "batch.strategy",
		},
		{
			name: "min batch size above max",
			mutate: func(cfg *Config) {
				cfg.Batch.MinBatchSize = 20
			},
			wantErr: "min_batch_size",
		},
		{
			name: "bad log level",
			mutate: func(cfg *Config) {
				cfg.Telemetry.Logging.Level = "verbose"
			},
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Backends: map[string]BackendConfig{
					"openai": {Kind: "openai", APIKey: "sk-test"},
				},
			}
			ApplyDefaults(cfg)
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

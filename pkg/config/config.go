package config

import "time"

// Config is the root configuration for the gateway.
type Config struct {
	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server"`

	// Backends maps backend names to their connection settings.
	Backends map[string]BackendConfig `yaml:"backends"`

	// Routing configures fallback strategy and circuit breaking.
	Routing RoutingConfig `yaml:"routing"`

	// Batch configures the request batching scheduler.
	Batch BatchConfig `yaml:"batch"`

	// Usage configures cost and token accounting.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the host:port to bind.
	// Default: ":8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Streaming responses are exempted via per-route deadlines.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds non-streaming request handling.
	// Default: 60s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1 MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS configures cross-origin resource sharing.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS settings for browser clients.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists origins allowed to access the API.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	// Default: ["Content-Type", "Authorization", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 300
	MaxAge int `yaml:"max_age"`
}

// BackendConfig contains connection settings for one backend.
type BackendConfig struct {
	// Kind selects the adapter: "openai", "anthropic", or "local".
	Kind string `yaml:"kind"`

	// Enabled controls whether the backend is registered.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// BaseURL is the API base URL. Empty selects the adapter default.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the backend. Local backends may
	// leave it empty.
	APIKey string `yaml:"api_key"`

	// Timeout is the per-request timeout.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry budget for transient failures.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`
}

// RoutingConfig contains fallback and circuit breaker settings.
type RoutingConfig struct {
	// Strategy orders fallback candidates. Options: "sequential",
	// "random", "least_cost", "least_latency", "round_robin".
	// Default: "sequential"
	Strategy string `yaml:"strategy"`

	// Order lists backend names in preference order for the sequential
	// strategy. Backends not listed are appended in config order.
	Order []string `yaml:"order"`

	// FailureThreshold is the consecutive failure count that opens a
	// backend's circuit breaker.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is how long an open breaker waits before allowing
	// a probe request.
	// Default: 60s
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// BatchConfig contains request batching settings.
type BatchConfig struct {
	// Enabled controls whether the batch scheduler runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Strategy selects batch admission. Options: "immediate",
	// "size_based", "time_based", "cost_optimized", "hybrid".
	// Default: "hybrid"
	Strategy string `yaml:"strategy"`

	// MaxBatchSize caps items per batch.
	// Default: 10
	MaxBatchSize int `yaml:"max_batch_size"`

	// MinBatchSize is the preferred lower bound per batch.
	// Default: 2
	MinBatchSize int `yaml:"min_batch_size"`

	// MaxWait bounds how long the oldest queued item waits.
	// Default: 5s
	MaxWait time.Duration `yaml:"max_wait"`

	// PriorityBoost scales the priority term of the hybrid score.
	// Default: 2.0
	PriorityBoost float64 `yaml:"priority_boost"`

	// CostThreshold triggers cost-optimized admission (USD).
	// Default: 0.01
	CostThreshold float64 `yaml:"cost_threshold"`

	// MaxConcurrentBatches bounds in-flight batches.
	// Default: 3
	MaxConcurrentBatches int `yaml:"max_concurrent_batches"`

	// FanOutLimit bounds concurrent upstream calls within one batch.
	// Default: 4
	FanOutLimit int `yaml:"fan_out_limit"`
}

// UsageConfig contains cost accounting settings.
type UsageConfig struct {
	// Enabled controls whether usage is recorded.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// StorePath is the SQLite database file for durable usage records.
	// Empty keeps records in memory only.
	StorePath string `yaml:"store_path"`

	// FlushEvery is the append count between automatic async flushes.
	// Default: 10
	FlushEvery int `yaml:"flush_every"`

	// FlushSchedule is a standard cron expression for periodic full
	// flushes. Empty disables scheduled flushing.
	FlushSchedule string `yaml:"flush_schedule"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// Logging configures slog output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus collector.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum level to emit.
	// Options: "debug", "info", "warn", "error". Default: "info"
	Level string `yaml:"level"`

	// Format controls output. Options: "json", "text". Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the scrape endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "meridian"
	Namespace string `yaml:"namespace"`

	// LatencyBuckets defines histogram buckets for call latency in
	// seconds.
	// Default: [0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0]
	LatencyBuckets []float64 `yaml:"latency_buckets"`

	// BatchSizeBuckets defines histogram buckets for batch sizes.
	// Default: [1, 2, 3, 5, 8, 10, 15, 20]
	BatchSizeBuckets []float64 `yaml:"batch_size_buckets"`
}

// enabled interprets a *bool flag that defaults to true.
func enabled(b *bool) bool {
	return b == nil || *b
}

func (c BackendConfig) IsEnabled() bool { return enabled(c.Enabled) }
func (c BatchConfig) IsEnabled() bool   { return enabled(c.Enabled) }
func (c UsageConfig) IsEnabled() bool   { return enabled(c.Enabled) }
func (c MetricsConfig) IsEnabled() bool { return enabled(c.Enabled) }

package config

import "time"

// Server defaults.
const (
	DefaultListenAddress   = ":8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultCORSMaxAge      = 300
)

// Backend defaults.
const (
	DefaultBackendTimeout    = 60 * time.Second
	DefaultBackendMaxRetries = 3
)

// Routing defaults.
const (
	DefaultRoutingStrategy  = "sequential"
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
)

// Batch defaults.
const (
	DefaultBatchStrategy        = "hybrid"
	DefaultMaxBatchSize         = 10
	DefaultMinBatchSize         = 2
	DefaultMaxWait              = 5 * time.Second
	DefaultPriorityBoost        = 2.0
	DefaultCostThreshold        = 0.01
	DefaultMaxConcurrentBatches = 3
	DefaultFanOutLimit          = 4
)

// Usage defaults.
const DefaultFlushEvery = 10

// Telemetry defaults.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "meridian"
)

// ApplyDefaults fills zero-value fields on cfg. Idempotent; safe to call
// multiple times.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Backends
	if cfg.Backends == nil {
		cfg.Backends = make(map[string]BackendConfig)
	}
	for name, backend := range cfg.Backends {
		if backend.Timeout == 0 {
			backend.Timeout = DefaultBackendTimeout
		}
		if backend.MaxRetries == 0 {
			backend.MaxRetries = DefaultBackendMaxRetries
		}
		cfg.Backends[name] = backend
	}

	// Routing
	if cfg.Routing.Strategy == "" {
		cfg.Routing.Strategy = DefaultRoutingStrategy
	}
	if cfg.Routing.FailureThreshold == 0 {
		cfg.Routing.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Routing.RecoveryTimeout == 0 {
		cfg.Routing.RecoveryTimeout = DefaultRecoveryTimeout
	}

	// Batch
	if cfg.Batch.Strategy == "" {
		cfg.Batch.Strategy = DefaultBatchStrategy
	}
	if cfg.Batch.MaxBatchSize == 0 {
		cfg.Batch.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Batch.MinBatchSize == 0 {
		cfg.Batch.MinBatchSize = DefaultMinBatchSize
	}
	if cfg.Batch.MaxWait == 0 {
		cfg.Batch.MaxWait = DefaultMaxWait
	}
	if cfg.Batch.PriorityBoost == 0 {
		cfg.Batch.PriorityBoost = DefaultPriorityBoost
	}
	if cfg.Batch.CostThreshold == 0 {
		cfg.Batch.CostThreshold = DefaultCostThreshold
	}
	if cfg.Batch.MaxConcurrentBatches == 0 {
		cfg.Batch.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	if cfg.Batch.FanOutLimit == 0 {
		cfg.Batch.FanOutLimit = DefaultFanOutLimit
	}

	// Usage
	if cfg.Usage.FlushEvery == 0 {
		cfg.Usage.FlushEvery = DefaultFlushEvery
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}
	if len(cfg.Telemetry.Metrics.BatchSizeBuckets) == 0 {
		cfg.Telemetry.Metrics.BatchSizeBuckets = []float64{1, 2, 3, 5, 8, 10, 15, 20}
	}
}

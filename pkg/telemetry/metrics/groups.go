package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"helioshq/meridian/pkg/config"
)

// backendMetrics tracks backend call health and performance.
//
// Metrics:
//   - meridian_backend_requests_total
//   - meridian_backend_latency_seconds
//   - meridian_backend_errors_total
//   - meridian_backend_health
//   - meridian_backend_breaker_state
type backendMetrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	health       *prometheus.GaugeVec
	breakerState *prometheus.GaugeVec
}

func newBackendMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *backendMetrics {
	bm := &backendMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_requests_total",
				Help:      "Total backend calls by backend, model, and status",
			},
			[]string{"backend", "model", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_latency_seconds",
				Help:      "Backend call latency in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"backend", "model"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_errors_total",
				Help:      "Total backend errors by type",
			},
			[]string{"backend", "error_type"},
		),
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_health",
				Help:      "Backend health status (1=healthy, 0=unhealthy)",
			},
			[]string{"backend"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(bm.requests, bm.latency, bm.errors, bm.health, bm.breakerState)
	return bm
}

// batchMetrics tracks the batch scheduler.
//
// Metrics:
//   - meridian_batches_total
//   - meridian_batch_size
//   - meridian_batch_queue_depth
type batchMetrics struct {
	batches    *prometheus.CounterVec
	size       *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
}

func newBatchMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *batchMetrics {
	bm := &batchMetrics{
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "batches_total",
				Help:      "Total dispatched batches by request kind",
			},
			[]string{"kind"},
		),
		size: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "batch_size",
				Help:      "Items per dispatched batch",
				Buckets:   cfg.BatchSizeBuckets,
			},
			[]string{"kind"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "batch_queue_depth",
				Help:      "Pending batch items by request kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(bm.batches, bm.size, bm.queueDepth)
	return bm
}

// costMetrics tracks estimated spend.
//
// Metrics:
//   - meridian_cost_usd_total
type costMetrics struct {
	total *prometheus.CounterVec
}

func newCostMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *costMetrics {
	cm := &costMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cost_usd_total",
				Help:      "Estimated cost in USD by backend and model",
			},
			[]string{"backend", "model"},
		),
	}

	registry.MustRegister(cm.total)
	return cm
}

package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"helioshq/meridian/pkg/config"
)

// maxLabelSets caps the number of distinct label combinations the
// collector accepts before it starts dropping new ones.
const maxLabelSets = 10000

// Collector orchestrates all Prometheus metrics for the gateway. It owns
// its registry; nothing is registered globally.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	backend *backendMetrics
	batch   *batchMetrics
	cost    *costMetrics

	limiter *cardinalityLimiter
}

// NewCollector creates a collector. A nil registry allocates a private
// one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "meridian"
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}
	if len(cfg.BatchSizeBuckets) == 0 {
		cfg.BatchSizeBuckets = []float64{1, 2, 3, 5, 8, 10, 15, 20}
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		backend:  newBackendMetrics(cfg, registry),
		batch:    newBatchMetrics(cfg, registry),
		cost:     newCostMetrics(cfg, registry),
		limiter:  newCardinalityLimiter(maxLabelSets),
	}
}

// Registry exposes the underlying registry for the scrape handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCall records one routed backend call.
func (c *Collector) RecordCall(backend, model, status string, duration time.Duration, cost float64) {
	if !c.config.IsEnabled() {
		return
	}
	if !c.limiter.allow(fmt.Sprintf("call:%s:%s:%s", backend, model, status)) {
		return
	}
	c.backend.requests.WithLabelValues(backend, model, status).Inc()
	c.backend.latency.WithLabelValues(backend, model).Observe(duration.Seconds())
	if cost > 0 {
		c.cost.total.WithLabelValues(backend, model).Add(cost)
	}
}

// RecordError counts a backend error by type.
func (c *Collector) RecordError(backend, errorType string) {
	if !c.config.IsEnabled() {
		return
	}
	if !c.limiter.allow("error:" + backend + ":" + errorType) {
		return
	}
	c.backend.errors.WithLabelValues(backend, errorType).Inc()
}

// UpdateBackendHealth sets the health gauge for a backend.
func (c *Collector) UpdateBackendHealth(backend string, healthy bool) {
	if !c.config.IsEnabled() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.backend.health.WithLabelValues(backend).Set(value)
}

// UpdateBreakerState sets the breaker state gauge for a backend.
// 0=closed, 1=open, 2=half_open.
func (c *Collector) UpdateBreakerState(backend, state string) {
	if !c.config.IsEnabled() {
		return
	}
	var value float64
	switch state {
	case "open":
		value = 1
	case "half_open":
		value = 2
	}
	c.backend.breakerState.WithLabelValues(backend).Set(value)
}

// ObserveBatch records a dispatched batch.
func (c *Collector) ObserveBatch(kind string, size int) {
	if !c.config.IsEnabled() {
		return
	}
	c.batch.batches.WithLabelValues(kind).Inc()
	c.batch.size.WithLabelValues(kind).Observe(float64(size))
}

// SetQueueDepth sets the pending item gauge for a request kind.
func (c *Collector) SetQueueDepth(kind string, depth int) {
	if !c.config.IsEnabled() {
		return
	}
	c.batch.queueDepth.WithLabelValues(kind).Set(float64(depth))
}

// cardinalityLimiter tracks distinct label sets and rejects new ones
// past the limit. Existing sets keep updating.
type cardinalityLimiter struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	limit int
}

func newCardinalityLimiter(limit int) *cardinalityLimiter {
	return &cardinalityLimiter{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

func (l *cardinalityLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return true
	}
	if len(l.seen) >= l.limit {
		return false
	}
	l.seen[key] = struct{}{}
	return true
}

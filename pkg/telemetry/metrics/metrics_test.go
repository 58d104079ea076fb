package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"helioshq/meridian/pkg/config"
)

func testCollector() *Collector {
	cfg := config.MetricsConfig{Namespace: "meridian"}
	return NewCollector(cfg, prometheus.NewRegistry())
}

func TestRecordCall(t *testing.T) {
	c := testCollector()

	c.RecordCall("openai", "gpt-4o", "success", 150*time.Millisecond, 0.01)
	c.RecordCall("openai", "gpt-4o", "success", 200*time.Millisecond, 0.02)
	c.RecordCall("anthropic", "claude-3-opus", "error", time.Second, 0)

	if got := testutil.ToFloat64(c.backend.requests.WithLabelValues("openai", "gpt-4o", "success")); got != 2 {
		t.Errorf("openai requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cost.total.WithLabelValues("openai", "gpt-4o")); got != 0.03 {
		t.Errorf("openai cost = %v, want 0.03", got)
	}
	if got := testutil.ToFloat64(c.backend.requests.WithLabelValues("anthropic", "claude-3-opus", "error")); got != 1 {
		t.Errorf("anthropic error requests = %v, want 1", got)
	}
}

func TestHealthAndBreakerGauges(t *testing.T) {
	c := testCollector()

	c.UpdateBackendHealth("openai", true)
	c.UpdateBackendHealth("anthropic", false)
	c.UpdateBreakerState("anthropic", "open")
	c.UpdateBreakerState("openai", "closed")

	if got := testutil.ToFloat64(c.backend.health.WithLabelValues("openai")); got != 1 {
		t.Errorf("openai health = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.backend.health.WithLabelValues("anthropic")); got != 0 {
		t.Errorf("anthropic health = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.backend.breakerState.WithLabelValues("anthropic")); got != 1 {
		t.Errorf("anthropic breaker state = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.backend.breakerState.WithLabelValues("openai")); got != 0 {
		t.Errorf("openai breaker state = %v, want 0", got)
	}
}

func TestBatchMetrics(t *testing.T) {
	c := testCollector()

	c.ObserveBatch("completion", 5)
	c.ObserveBatch("completion", 3)
	c.SetQueueDepth("embedding", 7)

	if got := testutil.ToFloat64(c.batch.batches.WithLabelValues("completion")); got != 2 {
		t.Errorf("batches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.batch.queueDepth.WithLabelValues("embedding")); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	off := false
	c := NewCollector(config.MetricsConfig{Enabled: &off}, prometheus.NewRegistry())

	c.RecordCall("openai", "gpt-4o", "success", time.Second, 0.01)
	c.UpdateBackendHealth("openai", true)
	c.ObserveBatch("completion", 5)

	if got := testutil.ToFloat64(c.backend.requests.WithLabelValues("openai", "gpt-4o", "success")); got != 0 {
		t.Errorf("requests = %v, want 0 when disabled", got)
	}
}

func TestScrapeHandler(t *testing.T) {
	c := testCollector()
	c.RecordCall("openai", "gpt-4o", "success", 100*time.Millisecond, 0.01)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "meridian_backend_requests_total") {
		t.Error("scrape output missing backend request counter")
	}
	if !strings.Contains(body, "meridian_cost_usd_total") {
		t.Error("scrape output missing cost counter")
	}
}

func TestCardinalityLimiter(t *testing.T) {
	l := newCardinalityLimiter(2)

	if !l.allow("a") || !l.allow("b") {
		t.Fatal("first two label sets should be admitted")
	}
	if l.allow("c") {
		t.Error("third label set should be rejected")
	}
	if !l.allow("a") {
		t.Error("known label set should stay admitted")
	}
}

package routing

import (
	"testing"
	"time"
)

func TestLatencyAverageEmptyHistory(t *testing.T) {
	tr := newLatencyTracker()

	if _, ok := tr.Average("openai"); ok {
		t.Error("expected no average without history")
	}
}

func TestLatencyAverageWindow(t *testing.T) {
	tr := newLatencyTracker()

	// 20 old slow samples followed by 10 fast ones; only the last 10
	// count toward the average.
	for i := 0; i < 20; i++ {
		tr.Record("openai", time.Second)
	}
	for i := 0; i < 10; i++ {
		tr.Record("openai", 100*time.Millisecond)
	}

	avg, ok := tr.Average("openai")
	if !ok {
		t.Fatal("expected average")
	}
	if avg != 100*time.Millisecond {
		t.Errorf("expected 100ms average over recent window, got %s", avg)
	}
}

func TestLatencyHistoryBounded(t *testing.T) {
	tr := newLatencyTracker()

	for i := 0; i < 500; i++ {
		tr.Record("openai", time.Millisecond)
	}

	tr.mu.Lock()
	size := len(tr.samples["openai"])
	tr.mu.Unlock()

	if size != latencyHistorySize {
		t.Errorf("expected history capped at %d, got %d", latencyHistorySize, size)
	}
}

func TestLatencyPerBackendIsolation(t *testing.T) {
	tr := newLatencyTracker()

	tr.Record("openai", time.Second)

	if _, ok := tr.Average("anthropic"); ok {
		t.Error("expected no cross-backend history")
	}
}

package routing

import (
	"sync"
	"time"
)

const (
	// latencyHistorySize is how many samples are retained per backend.
	latencyHistorySize = 100

	// latencyAverageWindow is how many recent samples the average covers.
	latencyAverageWindow = 10
)

// latencyTracker keeps a bounded per-backend history of successful
// request latencies. Only successes are recorded; failure latencies say
// nothing about how fast the backend serves real traffic.
type latencyTracker struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
}

func newLatencyTracker() *latencyTracker {
	return &latencyTracker{
		samples: make(map[string][]time.Duration),
	}
}

// Record appends a sample, dropping the oldest beyond the history cap.
func (t *latencyTracker) Record(backend string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := append(t.samples[backend], d)
	if len(history) > latencyHistorySize {
		history = history[len(history)-latencyHistorySize:]
	}
	t.samples[backend] = history
}

// Average returns the mean of the most recent samples. The second
// return value is false when no history exists.
func (t *latencyTracker) Average(backend string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := t.samples[backend]
	if len(history) == 0 {
		return 0, false
	}

	window := history
	if len(window) > latencyAverageWindow {
		window = window[len(window)-latencyAverageWindow:]
	}

	var total time.Duration
	for _, d := range window {
		total += d
	}
	return total / time.Duration(len(window)), true
}

// Reset drops all history.
func (t *latencyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = make(map[string][]time.Duration)
}

package routing

import (
	"sync"
	"time"

	"helioshq/meridian/pkg/breaker"
)

// Stats accumulates per-backend routing counters. All methods are safe
// for concurrent use.
type Stats struct {
	mu sync.Mutex

	total      int64
	fallbacks  int64
	errors     int64
	perBackend map[string]*backendCounters
	lastReset  time.Time
}

type backendCounters struct {
	requests  int64
	successes int64
	failures  int64
	skipped   int64 // breaker rejections
}

func newStats() *Stats {
	return &Stats{
		perBackend: make(map[string]*backendCounters),
		lastReset:  time.Now(),
	}
}

func (s *Stats) counters(backend string) *backendCounters {
	c, ok := s.perBackend[backend]
	if !ok {
		c = &backendCounters{}
		s.perBackend[backend] = c
	}
	return c
}

func (s *Stats) recordRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
}

func (s *Stats) recordSuccess(backend string, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters(backend)
	c.requests++
	c.successes++
	if fallback {
		s.fallbacks++
	}
}

func (s *Stats) recordFailure(backend string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters(backend)
	c.requests++
	c.failures++
}

func (s *Stats) recordSkip(backend string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters(backend).skipped++
}

func (s *Stats) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// BackendStats is the externally visible per-backend view.
type BackendStats struct {
	Backend      string           `json:"backend"`
	Requests     int64            `json:"requests"`
	Successes    int64            `json:"successes"`
	Failures     int64            `json:"failures"`
	Skipped      int64            `json:"skipped"`
	AvgLatencyMS float64          `json:"avg_latency_ms"`
	Healthy      bool             `json:"healthy"`
	Breaker      breaker.Snapshot `json:"breaker"`
}

// Snapshot is the externally visible router-wide view.
type Snapshot struct {
	Strategy      string         `json:"strategy"`
	TotalRequests int64          `json:"total_requests"`
	Fallbacks     int64          `json:"fallbacks"`
	Errors        int64          `json:"errors"`
	Backends      []BackendStats `json:"backends"`
	Since         time.Time      `json:"since"`
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.fallbacks = 0
	s.errors = 0
	s.perBackend = make(map[string]*backendCounters)
	s.lastReset = time.Now()
}

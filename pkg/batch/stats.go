package batch

import (
	"sync"
	"time"
)

// stats accumulates scheduler counters under a single mutex.
type stats struct {
	mu sync.Mutex

	totalRequests       int64
	totalBatches        int64
	avgBatchSize        float64
	totalProcessingTime time.Duration
	costSavings         float64
	priorities          map[Priority]int64
}

func newStats() *stats {
	return &stats{priorities: make(map[Priority]int64)}
}

func (s *stats) recordSubmit(p Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.priorities[p]++
}

func (s *stats) recordBatch(size int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalBatches++
	s.avgBatchSize = (s.avgBatchSize*float64(s.totalBatches-1) + float64(size)) / float64(s.totalBatches)
	s.totalProcessingTime += elapsed
}

func (s *stats) recordSavings(amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costSavings += amount
}

// Snapshot is a point-in-time view of scheduler activity.
type Snapshot struct {
	Strategy            string                  `json:"strategy"`
	TotalRequests       int64                   `json:"total_requests"`
	TotalBatches        int64                   `json:"total_batches"`
	AvgBatchSize        float64                 `json:"avg_batch_size"`
	TotalProcessingTime time.Duration           `json:"total_processing_time"`
	CostSavings         float64                 `json:"cost_savings"`
	ActiveBatches       int                     `json:"active_batches"`
	TotalQueued         int                     `json:"total_queued"`
	Queues              map[Kind]map[string]int `json:"queue_stats"`
	Priorities          map[string]int64        `json:"priority_distribution"`
}

func (s *stats) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		TotalRequests:       s.totalRequests,
		TotalBatches:        s.totalBatches,
		AvgBatchSize:        s.avgBatchSize,
		TotalProcessingTime: s.totalProcessingTime,
		CostSavings:         s.costSavings,
		Priorities:          make(map[string]int64, len(s.priorities)),
	}
	for p, n := range s.priorities {
		snap.Priorities[p.String()] = n
	}
	return snap
}

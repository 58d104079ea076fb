package strategies

import (
	"sort"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/routing"
)

// LeastLatency orders candidates by their recent average request
// latency, fastest first. Candidates with no latency history sort after
// every candidate that has one; an unmeasured backend should not jump
// the queue.
type LeastLatency struct{}

// NewLeastLatency creates a least-latency strategy.
func NewLeastLatency() *LeastLatency {
	return &LeastLatency{}
}

// Order returns the candidates sorted by ascending average latency.
// Ties and unmeasured candidates keep registration order.
func (s *LeastLatency) Order(req *backends.CompletionRequest, candidates []routing.Candidate) []routing.Candidate {
	out := append([]routing.Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HasLatency != out[j].HasLatency {
			return out[i].HasLatency
		}
		if !out[i].HasLatency {
			return false
		}
		return out[i].AvgLatency < out[j].AvgLatency
	})
	return out
}

// Name returns the strategy name.
func (s *LeastLatency) Name() string {
	return routing.StrategyLeastLatency
}

// Reset is a no-op.
func (s *LeastLatency) Reset() {}

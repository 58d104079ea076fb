package strategies

import (
	"sort"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/routing"
)

// LeastCost orders candidates by the mean per-1K-token cost of the
// model each would serve, cheapest first. Local models cost nothing and
// therefore always sort to the front.
type LeastCost struct{}

// NewLeastCost creates a least-cost strategy.
func NewLeastCost() *LeastCost {
	return &LeastCost{}
}

// Order returns the candidates sorted by ascending cost. Ties keep
// registration order.
func (s *LeastCost) Order(req *backends.CompletionRequest, candidates []routing.Candidate) []routing.Candidate {
	out := append([]routing.Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgCostPer1K < out[j].AvgCostPer1K
	})
	return out
}

// Name returns the strategy name.
func (s *LeastCost) Name() string {
	return routing.StrategyLeastCost
}

// Reset is a no-op.
func (s *LeastCost) Reset() {}

package strategies

import (
	"sync/atomic"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/routing"
)

// RoundRobin rotates the starting candidate across requests so load
// spreads evenly while the rest of the chain stays available for
// fallback.
//
// The counter rotates the whole slice rather than picking a single
// candidate: the request still walks every backend if earlier ones fail.
type RoundRobin struct {
	counter atomic.Int64
}

// NewRoundRobin creates a round-robin strategy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Order returns the candidates rotated by the request counter.
func (s *RoundRobin) Order(req *backends.CompletionRequest, candidates []routing.Candidate) []routing.Candidate {
	out := append([]routing.Candidate(nil), candidates...)
	if len(out) < 2 {
		return out
	}

	count := s.counter.Add(1) - 1
	if count >= 1_000_000_000 {
		// Keep the counter bounded; the modulo below makes the reset
		// invisible apart from one repeated offset.
		s.counter.CompareAndSwap(count+1, 0)
	}

	offset := int(count % int64(len(out)))
	return append(out[offset:], out[:offset]...)
}

// Name returns the strategy name.
func (s *RoundRobin) Name() string {
	return routing.StrategyRoundRobin
}

// Reset zeroes the rotation counter.
func (s *RoundRobin) Reset() {
	s.counter.Store(0)
}

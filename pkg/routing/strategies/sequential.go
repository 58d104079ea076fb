// Package strategies provides the candidate-ordering strategies the
// router chooses between: sequential, random, round-robin, least-cost,
// and least-latency. All strategies are pure orderings over the
// precomputed candidate slice and are safe for concurrent use.
package strategies

import (
	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/routing"
)

// Sequential tries candidates in their configured registration order.
// This is the default strategy: predictable, and puts the operator in
// charge of preference.
type Sequential struct{}

// NewSequential creates a sequential strategy.
func NewSequential() *Sequential {
	return &Sequential{}
}

// Order returns the candidates unchanged.
func (s *Sequential) Order(req *backends.CompletionRequest, candidates []routing.Candidate) []routing.Candidate {
	return append([]routing.Candidate(nil), candidates...)
}

// Name returns the strategy name.
func (s *Sequential) Name() string {
	return routing.StrategySequential
}

// Reset is a no-op.
func (s *Sequential) Reset() {}

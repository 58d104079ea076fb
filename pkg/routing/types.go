package routing

import (
	"time"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/breaker"
)

// Route pairs a backend adapter with its circuit breaker. Routes are
// registered at startup in configuration order; that order is the
// sequential fallback order.
type Route struct {
	Backend backends.Backend
	Breaker *breaker.Breaker
}

// Candidate is one route that can serve a specific request, with the
// model it would serve and the ordering inputs precomputed. Strategies
// reorder candidate slices; they never call into the backend.
type Candidate struct {
	Route

	// Model is the model this backend would actually serve, after
	// cross-backend equivalence remapping.
	Model string

	// Remapped indicates Model differs from what the caller requested.
	Remapped bool

	// AvgCostPer1K is the mean per-1K-token cost of Model on this
	// backend. Zero for local models.
	AvgCostPer1K float64

	// AvgLatency is the backend's recent average request latency.
	// Valid only when HasLatency is true.
	AvgLatency time.Duration

	// HasLatency reports whether any latency history exists. Candidates
	// without history order after all candidates with history.
	HasLatency bool
}

// Strategy orders the candidates a request may be served by. The router
// tries the returned candidates front to back.
//
// This interface is declared here rather than in the strategies package
// to avoid an import cycle; implementations live in
// helioshq/meridian/pkg/routing/strategies.
//
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Order returns the candidates in preference order. It must not
	// mutate the input slice.
	Order(req *backends.CompletionRequest, candidates []Candidate) []Candidate

	// Name returns the strategy name for logging and stats.
	Name() string

	// Reset clears internal state (counters, RNG). Used by tests and
	// configuration reloads.
	Reset()
}

// Strategy names accepted in configuration.
const (
	StrategySequential   = "sequential"
	StrategyRandom       = "random"
	StrategyLeastCost    = "least_cost"
	StrategyLeastLatency = "least_latency"
	StrategyRoundRobin   = "round_robin"
)

package strategies

import (
	"math/rand"
	"sync"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/routing"
)

// Random shuffles the candidates uniformly. Useful for spreading load
// when backends are interchangeable and no cost or latency signal
// should dominate.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random strategy seeded from the global source.
func NewRandom() *Random {
	return &Random{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// Order returns a uniformly shuffled copy of the candidates.
func (s *Random) Order(req *backends.CompletionRequest, candidates []routing.Candidate) []routing.Candidate {
	out := append([]routing.Candidate(nil), candidates...)

	s.mu.Lock()
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	s.mu.Unlock()

	return out
}

// Name returns the strategy name.
func (s *Random) Name() string {
	return routing.StrategyRandom
}

// Reset reseeds the generator.
func (s *Random) Reset() {
	s.mu.Lock()
	s.rng = rand.New(rand.NewSource(rand.Int63()))
	s.mu.Unlock()
}

package strategies

import (
	"fmt"
	"strings"

	"helioshq/meridian/pkg/routing"
)

// New creates a strategy by its configuration name.
func New(name string) (routing.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case routing.StrategySequential, "":
		return NewSequential(), nil
	case routing.StrategyRandom:
		return NewRandom(), nil
	case routing.StrategyRoundRobin:
		return NewRoundRobin(), nil
	case routing.StrategyLeastCost:
		return NewLeastCost(), nil
	case routing.StrategyLeastLatency:
		return NewLeastLatency(), nil
	default:
		return nil, fmt.Errorf("unknown routing strategy %q (available: %s, %s, %s, %s, %s)",
			name,
			routing.StrategySequential,
			routing.StrategyRandom,
			routing.StrategyRoundRobin,
			routing.StrategyLeastCost,
			routing.StrategyLeastLatency,
		)
	}
}

package batch

import (
	"fmt"
	"time"
)

// Admission strategy names.
const (
	StrategyImmediate     = "immediate"
	StrategySizeBased     = "size_based"
	StrategyTimeBased     = "time_based"
	StrategyCostOptimized = "cost_optimized"
	StrategyHybrid        = "hybrid"
)

// Default tuning values.
const (
	DefaultMaxBatchSize         = 10
	DefaultMinBatchSize         = 2
	DefaultMaxWait              = 5 * time.Second
	DefaultPriorityBoost        = 2.0
	DefaultCostThreshold        = 0.01
	DefaultMaxConcurrentBatches = 3
	DefaultFanOutLimit          = 4
	DefaultTick                 = 100 * time.Millisecond
)

// submitWaitCeiling bounds how long a synchronous Submit blocks for its
// result. Hitting the ceiling fails that caller only; the queued item and
// any batch it joins are unaffected.
const submitWaitCeiling = 30 * time.Second

// Config tunes the scheduler. The zero value is not usable; call
// ApplyDefaults or load it through the config package.
type Config struct {
	// Strategy selects the admission strategy. Defaults to hybrid.
	Strategy string `yaml:"strategy"`

	// MaxBatchSize caps how many items a single batch extracts
	MaxBatchSize int `yaml:"max_batch_size"`

	// MinBatchSize is the preferred lower bound for a batch. Advisory;
	// time-based and hybrid admission may flush smaller queues.
	MinBatchSize int `yaml:"min_batch_size"`

	// MaxWait is how long the oldest item may sit queued before the
	// time-based and hybrid strategies force a flush
	MaxWait time.Duration `yaml:"max_wait"`

	// PriorityBoost scales the priority term of the hybrid score
	PriorityBoost float64 `yaml:"priority_boost"`

	// CostThreshold is the estimated queue cost (USD) at which the
	// cost-optimized strategy admits a batch
	CostThreshold float64 `yaml:"cost_threshold"`

	// MaxConcurrentBatches bounds in-flight batches; admission pauses
	// while the limit is reached
	MaxConcurrentBatches int `yaml:"max_concurrent_batches"`

	// FanOutLimit bounds concurrent upstream calls within one batch
	FanOutLimit int `yaml:"fan_out_limit"`

	// Tick is the admission loop interval
	Tick time.Duration `yaml:"tick"`
}

// ApplyDefaults fills zero-value fields. Idempotent.
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyHybrid
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.MinBatchSize <= 0 {
		c.MinBatchSize = DefaultMinBatchSize
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.PriorityBoost <= 0 {
		c.PriorityBoost = DefaultPriorityBoost
	}
	if c.CostThreshold <= 0 {
		c.CostThreshold = DefaultCostThreshold
	}
	if c.MaxConcurrentBatches <= 0 {
		c.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	if c.FanOutLimit <= 0 {
		c.FanOutLimit = DefaultFanOutLimit
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
}

// Validate checks the config for inconsistencies after defaults are
// applied.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyImmediate, StrategySizeBased, StrategyTimeBased, StrategyCostOptimized, StrategyHybrid:
	default:
		return fmt.Errorf("unknown batch strategy %q (valid: %s, %s, %s, %s, %s)",
			c.Strategy, StrategyImmediate, StrategySizeBased, StrategyTimeBased, StrategyCostOptimized, StrategyHybrid)
	}
	if c.MinBatchSize > c.MaxBatchSize {
		return fmt.Errorf("min_batch_size %d exceeds max_batch_size %d", c.MinBatchSize, c.MaxBatchSize)
	}
	return nil
}

// Package breaker implements a per-backend circuit breaker with the
// classic three-state machine. A breaker trips after a run of
// consecutive backend faults, rejects calls while open, and probes the
// backend with a single trial request once the recovery timeout elapses.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"helioshq/meridian/pkg/backends"
)

// State is the breaker's position in the state machine.
type State int

const (
	// StateClosed passes all calls through and counts failures.
	StateClosed State = iota

	// StateOpen rejects all calls until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen admits exactly one probe call; its outcome decides
	// the next state.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow and Do while the breaker rejects calls.
// Callers treat it as "skip this backend", not as a backend failure.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker tuning.
type Config struct {
	// FailureThreshold is the run of consecutive counted failures that
	// trips the breaker. Defaults to 5.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before it
	// admits a probe. Defaults to 60s.
	RecoveryTimeout time.Duration

	// Classifier decides whether an error counts toward the failure
	// threshold. Errors it rejects (caller bugs, credential problems)
	// propagate without touching breaker state. Defaults to
	// backends.IsBackendFault.
	Classifier func(error) bool

	// OnStateChange is invoked after every transition. Optional.
	OnStateChange func(name string, from, to State)
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.Classifier == nil {
		c.Classifier = backends.IsBackendFault
	}
}

// Breaker is a single backend's circuit breaker. All methods are safe
// for concurrent use.
type Breaker struct {
	name   string
	config Config

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	lastFailure   time.Time
	probeInflight bool

	totalSuccesses uint64
	totalFailures  uint64
	opens          uint64
}

// Snapshot is a point-in-time view of breaker state for stats endpoints.
type Snapshot struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalSuccesses      uint64    `json:"total_successes"`
	TotalFailures       uint64    `json:"total_failures"`
	Opens               uint64    `json:"opens"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
}

// New creates a breaker for the named backend.
func New(name string, config Config) *Breaker {
	config.ApplyDefaults()
	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// Name returns the backend name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed. While open it returns
// ErrOpen until the recovery timeout elapses, then admits exactly one
// probe; concurrent callers keep getting ErrOpen until the probe
// resolves.
//
// Every nil error from Allow must be balanced by exactly one
// RecordSuccess or RecordFailure call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.openedAt) < b.config.RecoveryTimeout {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.probeInflight = true
		slog.Info("circuit breaker probing",
			"backend", b.name,
			"open_for", time.Since(b.openedAt).Round(time.Millisecond),
		)
		return nil

	case StateHalfOpen:
		if b.probeInflight {
			return ErrOpen
		}
		b.probeInflight = true
		return nil

	default:
		return ErrOpen
	}
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		slog.Info("circuit breaker recovered", "backend", b.name)
		b.probeInflight = false
		b.failures = 0
		b.setState(StateClosed)
	}
}

// RecordFailure records a failed call. Errors the classifier rejects
// (caller bugs, credential problems) leave failure counters and state
// untouched; they only release a pending probe.
func (b *Breaker) RecordFailure(err error) {
	if err == nil {
		b.RecordSuccess()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.config.Classifier(err) {
		b.probeInflight = false
		return
	}

	b.totalFailures++
	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.config.FailureThreshold {
			b.trip()
		}

	case StateHalfOpen:
		slog.Warn("circuit breaker probe failed", "backend", b.name, "error", err)
		b.probeInflight = false
		b.trip()
	}
}

// trip moves to open and stamps the recovery clock. Caller holds the lock.
func (b *Breaker) trip() {
	b.openedAt = time.Now()
	b.opens++
	slog.Warn("circuit breaker opened",
		"backend", b.name,
		"consecutive_failures", b.failures,
		"recovery_timeout", b.config.RecoveryTimeout,
	)
	b.setState(StateOpen)
}

// setState transitions and fires the callback. Caller holds the lock.
func (b *Breaker) setState(next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.name, prev, next)
	}
}

// Do runs fn under the breaker: Allow, call, record. The context is
// passed through untouched; fn owns timeout handling.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		b.RecordFailure(err)
		return err
	}

	b.RecordSuccess()
	return nil
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Surface the pending open->half_open transition without mutating;
	// Allow performs the real transition.
	if b.state == StateOpen && time.Since(b.openedAt) >= b.config.RecoveryTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Snapshot returns a point-in-time view for stats reporting.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
		TotalSuccesses:      b.totalSuccesses,
		TotalFailures:       b.totalFailures,
		Opens:               b.opens,
		LastFailure:         b.lastFailure,
		OpenedAt:            b.openedAt,
	}
}

// Reset forces the breaker closed and clears failure bookkeeping.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInflight = false
	b.setState(StateClosed)

	slog.Info("circuit breaker reset", "backend", b.name)
}

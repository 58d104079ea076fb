package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultFlushEvery is how many appends accumulate before an automatic
// asynchronous flush to the store.
const DefaultFlushEvery = 10

// flushTimeout bounds a single background flush.
const flushTimeout = 10 * time.Second

// Ledger accumulates usage in memory and periodically hands raw records
// to a Store. All methods are safe for concurrent use.
type Ledger struct {
	store      Store
	flushEvery int
	logger     *slog.Logger

	mu        sync.Mutex
	total     Totals
	byUser    map[string]*Totals
	byModel   map[string]*Totals
	byBackend map[string]*Totals
	hourly    *costWindow
	daily     *costWindow
	pending   []Record
	since     time.Time
}

// NewLedger creates a ledger over the given store. A nil store disables
// persistence; the ledger then only keeps in-memory aggregates.
// flushEvery <= 0 selects DefaultFlushEvery.
func NewLedger(store Store, flushEvery int) *Ledger {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	return &Ledger{
		store:      store,
		flushEvery: flushEvery,
		logger:     slog.Default().With("component", "usage_ledger"),
		byUser:     make(map[string]*Totals),
		byModel:    make(map[string]*Totals),
		byBackend:  make(map[string]*Totals),
		hourly:     newCostWindow(time.Hour, time.Minute),
		daily:      newCostWindow(24*time.Hour, time.Hour),
		since:      time.Now(),
	}
}

// Record appends a usage event. Every flushEvery-th append hands the
// accumulated batch to the store on a background goroutine; Record never
// blocks on storage.
func (l *Ledger) Record(rec Record) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	l.mu.Lock()
	l.total.add(rec)
	bump(l.byUser, rec.User, rec)
	bump(l.byModel, rec.Model, rec)
	bump(l.byBackend, string(rec.Backend), rec)
	l.hourly.add(rec.Cost, rec.Time)
	l.daily.add(rec.Cost, rec.Time)

	var batch []Record
	if l.store != nil {
		l.pending = append(l.pending, rec)
		if len(l.pending) >= l.flushEvery {
			batch = l.pending
			l.pending = nil
		}
	}
	l.mu.Unlock()

	if batch != nil {
		go l.persist(batch)
	}
}

func bump(m map[string]*Totals, key string, rec Record) {
	if key == "" {
		return
	}
	totals := m[key]
	if totals == nil {
		totals = &Totals{}
		m[key] = totals
	}
	totals.add(rec)
}

func (l *Ledger) persist(batch []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := l.store.Append(ctx, batch); err != nil {
		l.logger.Error("usage flush failed", "records", len(batch), "error", err)
		return
	}
	l.logger.Debug("usage flushed", "records", len(batch))
}

// Flush synchronously persists any pending records. Used by the cron
// flusher and at shutdown.
func (l *Ledger) Flush(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := l.store.Append(ctx, batch); err != nil {
		// Put the batch back so a later flush can retry it.
		l.mu.Lock()
		l.pending = append(batch, l.pending...)
		l.mu.Unlock()
		return err
	}
	return nil
}

// Snapshot returns current aggregates.
func (l *Ledger) Snapshot() Snapshot {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Total:      l.total,
		ByUser:     copyTotals(l.byUser),
		ByModel:    copyTotals(l.byModel),
		ByBackend:  copyTotals(l.byBackend),
		HourlyCost: l.hourly.sum(now),
		DailyCost:  l.daily.sum(now),
		Since:      l.since,
	}
	return snap
}

func copyTotals(m map[string]*Totals) map[string]Totals {
	out := make(map[string]Totals, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}

// Reset clears all in-memory aggregates and pending records. Stored
// records are untouched.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = Totals{}
	l.byUser = make(map[string]*Totals)
	l.byModel = make(map[string]*Totals)
	l.byBackend = make(map[string]*Totals)
	l.hourly.reset()
	l.daily.reset()
	l.pending = nil
	l.since = time.Now()
}

// Close flushes pending records. The store is not closed; it may be
// shared.
func (l *Ledger) Close(ctx context.Context) error {
	return l.Flush(ctx)
}

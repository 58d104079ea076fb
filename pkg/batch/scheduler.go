package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"helioshq/meridian/pkg/backends"
)

// Executor runs batched work against the backend pool. *routing.Router
// satisfies it.
type Executor interface {
	Complete(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error)
	Embed(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error)
}

// Observer receives batch lifecycle measurements. The metrics collector
// satisfies it.
type Observer interface {
	ObserveBatch(kind string, size int)
	SetQueueDepth(kind string, depth int)
}

// Scheduler queues submitted items per kind and priority and flushes them
// into batches according to the configured admission strategy.
type Scheduler struct {
	exec     Executor
	logger   *slog.Logger
	observer Observer

	configMu sync.RWMutex
	config   Config

	queueMu sync.Mutex
	pending map[Kind]map[Priority][]*Item

	batchMu sync.Mutex
	active  map[string]int // batch id -> item count
	batches sync.WaitGroup

	stats *stats

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a scheduler over the given executor. Defaults are applied
// to cfg; Validate is the caller's responsibility when cfg comes from
// user input.
func New(exec Executor, cfg Config) *Scheduler {
	cfg.ApplyDefaults()
	return &Scheduler{
		exec:    exec,
		logger:  slog.Default().With("component", "batch_scheduler"),
		config:  cfg,
		pending: make(map[Kind]map[Priority][]*Item),
		active:  make(map[string]int),
		stats:   newStats(),
	}
}

// SetObserver wires batch measurements to a metrics sink. Must be called
// before Start.
func (s *Scheduler) SetObserver(o Observer) {
	s.observer = o
}

// Start launches the admission loop. Starting a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
	s.logger.Info("batch scheduler started",
		"strategy", s.snapshotConfig().Strategy,
		"max_batch_size", s.snapshotConfig().MaxBatchSize)
}

// Stop halts the admission loop, fails items still queued, and waits for
// in-flight batches to finish. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done

	// Unblock waiters on items that never made it into a batch.
	s.queueMu.Lock()
	var orphaned []*Item
	for _, byPriority := range s.pending {
		for _, queue := range byPriority {
			orphaned = append(orphaned, queue...)
		}
	}
	s.pending = make(map[Kind]map[Priority][]*Item)
	s.queueMu.Unlock()
	for _, item := range orphaned {
		item.deliver(&Result{ItemID: item.ID, Err: ErrNotRunning})
	}

	s.batches.Wait()
	s.logger.Info("batch scheduler stopped", "orphaned_items", len(orphaned))
}

// Submit enqueues an item. With wait set it blocks until the item's
// result arrives, the context is cancelled, or the 30 second submit
// ceiling passes; the ceiling fails only this caller, not the item.
// Without wait it returns immediately and the caller reads
// item.Result() itself.
func (s *Scheduler) Submit(ctx context.Context, item *Item, wait bool) (*Result, error) {
	if item == nil || item.Payload == nil {
		return nil, ErrNilPayload
	}

	kind := item.Payload.Kind()
	item.enqueued = time.Now()

	s.queueMu.Lock()
	// Checked under queueMu so Stop's drain, which also takes it, cannot
	// miss an item enqueued while the flag flips.
	if !s.running.Load() {
		s.queueMu.Unlock()
		return nil, ErrNotRunning
	}
	byPriority, ok := s.pending[kind]
	if !ok {
		byPriority = make(map[Priority][]*Item)
		s.pending[kind] = byPriority
	}
	byPriority[item.Priority] = append(byPriority[item.Priority], item)
	s.queueMu.Unlock()

	s.stats.recordSubmit(item.Priority)

	if !wait {
		return nil, nil
	}

	timer := time.NewTimer(submitWaitCeiling)
	defer timer.Stop()
	select {
	case res := <-item.result:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return &Result{ItemID: item.ID, Err: ErrSubmitTimeout}, nil
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.snapshotConfig().Tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.dispatch(time.Now())
		}
	}
}

// dispatch walks every (kind, priority) queue, most urgent first, and
// turns admitted queues into running batches.
func (s *Scheduler) dispatch(now time.Time) {
	cfg := s.snapshotConfig()

	for _, kind := range []Kind{KindCompletion, KindEmbedding, KindGeneration} {
		for _, priority := range priorities {
			if s.activeCount() >= cfg.MaxConcurrentBatches {
				return
			}

			s.queueMu.Lock()
			queue := s.pending[kind][priority]
			if !shouldAdmit(cfg, priority, queue, now) {
				s.queueMu.Unlock()
				continue
			}
			n := min(len(queue), cfg.MaxBatchSize)
			items := queue[:n:n]
			s.pending[kind][priority] = queue[n:]
			s.queueMu.Unlock()

			s.launch(kind, items, cfg)
		}
	}

	if s.observer != nil {
		depths := make(map[Kind]int)
		s.queueMu.Lock()
		for kind, byPriority := range s.pending {
			for _, queue := range byPriority {
				depths[kind] += len(queue)
			}
		}
		s.queueMu.Unlock()
		for _, kind := range []Kind{KindCompletion, KindEmbedding, KindGeneration} {
			s.observer.SetQueueDepth(string(kind), depths[kind])
		}
	}
}

func (s *Scheduler) launch(kind Kind, items []*Item, cfg Config) {
	batchID := fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])

	s.batchMu.Lock()
	s.active[batchID] = len(items)
	s.batchMu.Unlock()

	s.batches.Add(1)
	s.logger.Info("batch created", "batch_id", batchID, "kind", kind, "items", len(items))
	if s.observer != nil {
		s.observer.ObserveBatch(string(kind), len(items))
	}

	go func() {
		defer s.batches.Done()
		defer func() {
			s.batchMu.Lock()
			delete(s.active, batchID)
			s.batchMu.Unlock()
		}()
		// Panics inside the fan-out surface here through errgroup.Wait.
		// Every item still gets a result; deliver drops duplicates.
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("batch execution panicked",
					"batch_id", batchID, "kind", kind, "panic", r)
				err := fmt.Errorf("%w: %v", ErrBatchPanicked, r)
				for _, item := range items {
					item.deliver(&Result{ItemID: item.ID, BatchID: batchID, Err: err})
				}
			}
		}()
		s.runBatch(context.Background(), batchID, kind, items, cfg)
	}()
}

func (s *Scheduler) runBatch(ctx context.Context, batchID string, kind Kind, items []*Item, cfg Config) {
	start := time.Now()

	var results []*Result
	switch kind {
	case KindEmbedding:
		results = s.runEmbeddingBatch(ctx, batchID, items, cfg)
	default:
		// Completions are grouped by model for logging and future
		// per-model handling; execution fans out per item either way.
		// Generation items always run individually.
		results = s.runIndividual(ctx, batchID, items, cfg)
	}

	elapsed := time.Since(start)
	s.stats.recordBatch(len(items), elapsed)

	for i, item := range items {
		res := results[i]
		res.ItemID = item.ID
		res.BatchID = batchID
		item.deliver(res)
	}

	s.logger.Info("batch completed",
		"batch_id", batchID, "kind", kind, "items", len(items),
		"elapsed", elapsed)
}

func (s *Scheduler) activeCount() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.active)
}

func (s *Scheduler) snapshotConfig() Config {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// Retune swaps admission tuning at runtime. The tick interval of an
// already-running loop is not changed. Used by the config hot-reload
// watcher.
func (s *Scheduler) Retune(cfg Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.configMu.Lock()
	old := s.config.Strategy
	s.config = cfg
	s.configMu.Unlock()
	if old != cfg.Strategy {
		s.logger.Info("batch strategy changed", "from", old, "to", cfg.Strategy)
	}
	return nil
}

// Stats returns a point-in-time snapshot including queue depths.
func (s *Scheduler) Stats() Snapshot {
	snap := s.stats.snapshot()
	snap.Strategy = s.snapshotConfig().Strategy
	snap.ActiveBatches = s.activeCount()

	snap.Queues = make(map[Kind]map[string]int)
	s.queueMu.Lock()
	for kind, byPriority := range s.pending {
		depths := make(map[string]int, len(byPriority))
		for priority, queue := range byPriority {
			if len(queue) == 0 {
				continue
			}
			depths[priority.String()] = len(queue)
			snap.TotalQueued += len(queue)
		}
		if len(depths) > 0 {
			snap.Queues[kind] = depths
		}
	}
	s.queueMu.Unlock()
	return snap
}

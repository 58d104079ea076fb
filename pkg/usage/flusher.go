package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Flusher periodically flushes the ledger on a cron schedule, catching
// records that the every-Nth-append flush would leave sitting during
// quiet periods.
type Flusher struct {
	ledger   *Ledger
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
}

// NewFlusher creates a flusher with a standard cron schedule, for
// example "*/5 * * * *" for every five minutes.
func NewFlusher(ledger *Ledger, schedule string) *Flusher {
	return &Flusher{
		ledger:   ledger,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "usage_flusher"),
	}
}

// Start validates the schedule and begins periodic flushing. An empty
// schedule disables the flusher. The flusher stops when ctx is
// cancelled.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.schedule == "" {
		f.logger.Info("flush schedule not configured, skipping flusher")
		return nil
	}

	if _, err := cron.ParseStandard(f.schedule); err != nil {
		return fmt.Errorf("invalid flush schedule %q: %w", f.schedule, err)
	}

	if _, err := f.cron.AddFunc(f.schedule, func() {
		f.runFlush(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule usage flush: %w", err)
	}

	f.cron.Start()
	f.running = true
	f.logger.Info("usage flusher started", "schedule", f.schedule)

	go func() {
		<-ctx.Done()
		f.Stop()
	}()

	return nil
}

func (f *Flusher) runFlush(ctx context.Context) {
	if err := f.ledger.Flush(ctx); err != nil {
		f.logger.Error("scheduled usage flush failed", "error", err)
	}
}

// Stop halts the schedule and waits for a running flush to complete.
func (f *Flusher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	<-f.cron.Stop().Done()
	f.running = false
	f.logger.Info("usage flusher stopped")
}

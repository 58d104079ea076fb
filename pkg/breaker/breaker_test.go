package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"helioshq/meridian/pkg/backends"
)

var errBackend = &backends.CallError{Backend: "test", StatusCode: 500, Message: "boom"}

func testBreaker(threshold int, recovery time.Duration) *Breaker {
	return New("test", Config{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
	})
}

func TestTripsAfterThreshold(t *testing.T) {
	b := testBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow failed before threshold: %v", err)
		}
		b.RecordFailure(errBackend)
		if b.State() != StateClosed {
			t.Fatalf("expected closed after %d failures, got %s", i+1, b.State())
		}
	}

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	b.RecordFailure(errBackend)

	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := testBreaker(3, time.Minute)

	b.RecordFailure(errBackend)
	b.RecordFailure(errBackend)
	b.RecordSuccess()
	b.RecordFailure(errBackend)
	b.RecordFailure(errBackend)

	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}

	b.RecordFailure(errBackend)
	if b.State() != StateOpen {
		t.Errorf("expected open after 3 consecutive failures, got %s", b.State())
	}
}

func TestHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := testBreaker(1, 20*time.Millisecond)

	b.RecordFailure(errBackend)
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while open, got %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if b.State() != StateHalfOpen {
		t.Errorf("expected half_open after recovery timeout, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe to be admitted, got %v", err)
	}
}

func TestExactlyOneProbe(t *testing.T) {
	b := testBreaker(1, 10*time.Millisecond)

	b.RecordFailure(errBackend)
	time.Sleep(20 * time.Millisecond)

	var admitted int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("expected exactly 1 admitted probe, got %d", admitted)
	}
}

func TestProbeSuccessCloses(t *testing.T) {
	b := testBreaker(1, 10*time.Millisecond)

	b.RecordFailure(errBackend)
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe admitted, got %v", err)
	}
	b.RecordSuccess()

	if b.State() != StateClosed {
		t.Errorf("expected closed after probe success, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("expected calls admitted after recovery, got %v", err)
	}
}

func TestProbeFailureReopens(t *testing.T) {
	b := testBreaker(1, 10*time.Millisecond)

	b.RecordFailure(errBackend)
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe admitted, got %v", err)
	}
	b.RecordFailure(errBackend)

	if b.State() != StateOpen {
		t.Errorf("expected open after probe failure, got %s", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen immediately after reopen, got %v", err)
	}
}

func TestCallerErrorsDoNotCount(t *testing.T) {
	b := testBreaker(2, time.Minute)

	callerErr := &backends.ValidationError{Field: "messages", Message: "empty"}
	for i := 0; i < 10; i++ {
		b.RecordFailure(callerErr)
	}

	if b.State() != StateClosed {
		t.Errorf("expected closed after caller errors only, got %s", b.State())
	}

	snap := b.Snapshot()
	if snap.TotalFailures != 0 {
		t.Errorf("expected 0 counted failures, got %d", snap.TotalFailures)
	}
}

func TestCallerErrorReleasesProbe(t *testing.T) {
	b := testBreaker(1, 10*time.Millisecond)

	b.RecordFailure(errBackend)
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe admitted, got %v", err)
	}
	b.RecordFailure(&backends.ValidationError{Field: "model", Message: "unknown"})

	// The probe resolved without a verdict; the next caller probes again.
	if err := b.Allow(); err != nil {
		t.Errorf("expected next probe admitted, got %v", err)
	}
}

func TestDo(t *testing.T) {
	b := testBreaker(2, time.Minute)
	ctx := context.Background()

	if err := b.Do(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		err := b.Do(ctx, func(ctx context.Context) error { return errBackend })
		if !errors.Is(err, errBackend) {
			t.Fatalf("expected backend error passed through, got %v", err)
		}
	}

	if err := b.Do(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after trip, got %v", err)
	}
}

func TestReset(t *testing.T) {
	b := testBreaker(1, time.Hour)

	b.RecordFailure(errBackend)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	b.Reset()

	if b.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("expected calls admitted after reset, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	b := testBreaker(2, time.Minute)

	b.RecordSuccess()
	b.RecordFailure(errBackend)
	b.RecordFailure(errBackend)

	snap := b.Snapshot()
	if snap.Name != "test" {
		t.Errorf("expected name test, got %s", snap.Name)
	}
	if snap.State != "open" {
		t.Errorf("expected state open, got %s", snap.State)
	}
	if snap.TotalSuccesses != 1 || snap.TotalFailures != 2 {
		t.Errorf("unexpected totals: %+v", snap)
	}
	if snap.Opens != 1 {
		t.Errorf("expected 1 open, got %d", snap.Opens)
	}
	if snap.LastFailure.IsZero() {
		t.Error("expected last failure timestamp")
	}
}

func TestOnStateChange(t *testing.T) {
	transitions := make(chan [2]State, 4)
	b := New("test", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions <- [2]State{from, to}
		},
	})

	b.RecordFailure(errBackend)

	select {
	case tr := <-transitions:
		if tr[0] != StateClosed || tr[1] != StateOpen {
			t.Errorf("unexpected transition %s -> %s", tr[0], tr[1])
		}
	case <-time.After(time.Second):
		t.Fatal("expected state change callback")
	}
}

package usage

import "time"

// costWindow tracks cost over a rolling time window using fixed-size
// buckets. An hourly window uses 1-minute buckets, a daily window 1-hour
// buckets. Not safe for concurrent use; the Ledger serializes access.
type costWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []windowBucket
}

type windowBucket struct {
	start  time.Time
	amount float64
}

func newCostWindow(window, bucketSize time.Duration) *costWindow {
	n := int(window / bucketSize)
	if n == 0 {
		n = 1
	}
	return &costWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]windowBucket, n),
	}
}

func (w *costWindow) add(amount float64, now time.Time) {
	w.prune(now)

	start := now.Truncate(w.bucketSize)
	for i := range w.buckets {
		if w.buckets[i].start.Equal(start) {
			w.buckets[i].amount += amount
			return
		}
	}

	// No bucket for this interval yet. Take an empty slot, or evict the
	// oldest when the ring is full.
	target := -1
	for i := range w.buckets {
		if w.buckets[i].start.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(w.buckets); i++ {
			if w.buckets[i].start.Before(w.buckets[target].start) {
				target = i
			}
		}
	}
	w.buckets[target] = windowBucket{start: start, amount: amount}
}

func (w *costWindow) sum(now time.Time) float64 {
	w.prune(now)
	total := 0.0
	for i := range w.buckets {
		if !w.buckets[i].start.IsZero() {
			total += w.buckets[i].amount
		}
	}
	return total
}

func (w *costWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = windowBucket{}
	}
}

func (w *costWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.buckets {
		if !w.buckets[i].start.IsZero() && w.buckets[i].start.Before(cutoff) {
			w.buckets[i] = windowBucket{}
		}
	}
}

package usage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps records in memory. Suitable for tests and for
// deployments that do not need durability.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("memory store is closed")
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *MemoryStore) Sum(_ context.Context, since time.Time) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var totals Totals
	for _, rec := range m.records {
		if rec.Time.Before(since) {
			continue
		}
		totals.add(rec)
	}
	return totals, nil
}

func (m *MemoryStore) Aggregate(_ context.Context, dimension string, since time.Time) (map[string]Totals, error) {
	key, err := dimensionKey(dimension)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Totals)
	for _, rec := range m.records {
		if rec.Time.Before(since) {
			continue
		}
		k := key(rec)
		totals := out[k]
		totals.add(rec)
		out[k] = totals
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len reports the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func dimensionKey(dimension string) (func(Record) string, error) {
	switch dimension {
	case DimensionUser:
		return func(r Record) string { return r.User }, nil
	case DimensionModel:
		return func(r Record) string { return r.Model }, nil
	case DimensionBackend:
		return func(r Record) string { return string(r.Backend) }, nil
	default:
		return nil, fmt.Errorf("unknown aggregation dimension %q", dimension)
	}
}

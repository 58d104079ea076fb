package usage

import (
	"context"
	"time"
)

// Store persists usage records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append persists a batch of records
	Append(ctx context.Context, records []Record) error

	// Sum aggregates all records at or after since
	Sum(ctx context.Context, since time.Time) (Totals, error)

	// Aggregate groups records by the given dimension (DimensionUser,
	// DimensionModel, or DimensionBackend) at or after since
	Aggregate(ctx context.Context, dimension string, since time.Time) (map[string]Totals, error)

	// Close releases resources. The store must not be used afterwards.
	Close() error
}

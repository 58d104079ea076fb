package usage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists usage records to a SQLite database. The store
// uses WAL mode with periodic passive checkpoints and a single writer
// connection.
type SQLiteStore struct {
	db                 *sql.DB
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	insertStmt *sql.Stmt
}

// SQLiteConfig configures the SQLite usage store.
type SQLiteConfig struct {
	// Path is the database file path. Required.
	Path string

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5 minutes.
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (or creates) the usage database at path with
// default settings.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStoreWithConfig opens a usage store with custom settings.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	// SQLite supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:                 db,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}
	if store.insertStmt, err = db.Prepare(`
		INSERT INTO usage_records (ts, user, model, backend, prompt_tokens, completion_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	go store.checkpointLoop()

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		user TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		backend TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		cost REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage_records(ts);
	CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append writes the batch in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.insertStmt)
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.Time.Unix(),
			rec.User,
			rec.Model,
			string(rec.Backend),
			rec.PromptTokens,
			rec.CompletionTokens,
			rec.Cost,
		); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Sum(ctx context.Context, since time.Time) (Totals, error) {
	var totals Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records WHERE ts >= ?
	`, since.Unix()).Scan(&totals.Requests, &totals.PromptTokens, &totals.CompletionTokens, &totals.Cost)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to sum usage: %w", err)
	}
	totals.TotalTokens = totals.PromptTokens + totals.CompletionTokens
	return totals, nil
}

func (s *SQLiteStore) Aggregate(ctx context.Context, dimension string, since time.Time) (map[string]Totals, error) {
	var column string
	switch dimension {
	case DimensionUser:
		column = "user"
	case DimensionModel:
		column = "model"
	case DimensionBackend:
		column = "backend"
	default:
		return nil, fmt.Errorf("unknown aggregation dimension %q", dimension)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s,
		       COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM usage_records WHERE ts >= ?
		GROUP BY %s
	`, column, column), since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Totals)
	for rows.Next() {
		var key string
		var totals Totals
		if err := rows.Scan(&key, &totals.Requests, &totals.PromptTokens, &totals.CompletionTokens, &totals.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		totals.TotalTokens = totals.PromptTokens + totals.CompletionTokens
		out[key] = totals
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}
	return out, nil
}

// Close flushes the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.insertStmt != nil {
			s.insertStmt.Close()
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})
	return closeErr
}

func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

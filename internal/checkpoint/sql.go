package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and driver-specific setup.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "pgx"
)

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLStore keeps the checkpoint as a JSON payload in a single table row.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	slot    string

	schemaMu    sync.Mutex
	schemaReady bool
}

// OpenSQL opens dsn with the driver for dialect.
func OpenSQL(dialect Dialect, dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("checkpoint dsn is required")
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}
	return NewSQLStore(db, dialect), nil
}

// NewSQLStore wraps an existing handle. The table is created lazily.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, slot: Slot}
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// bind rewrites $n placeholders to ? for sqlite.
func (s *SQLStore) bind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ensureSchema creates the table once. A failed attempt is retried on the
// next call.
func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	err := s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS checkpoints (
  slot TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`)
		return err
	})
	if err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (*Checkpoint, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("checkpoint schema: %w", err)
	}
	var payload string
	err := s.retry(ctx, func() error {
		return s.db.QueryRowContext(ctx, s.bind(`SELECT payload FROM checkpoints WHERE slot = $1`), s.slot).Scan(&payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *SQLStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("checkpoint schema: %w", err)
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	err = s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO checkpoints (slot, payload, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (slot)
DO UPDATE SET payload=EXCLUDED.payload,
  updated_at=EXCLUDED.updated_at`),
			s.slot, string(raw), cp.LastUpdated.UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("checkpoint schema: %w", err)
	}
	err := s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM checkpoints WHERE slot = $1`), s.slot)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) retry(ctx context.Context, op func() error) error {
	if s.dialect != DialectSQLite {
		return op()
	}
	return retryOnBusy(ctx, op)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

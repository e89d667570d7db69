package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const createCheckpointTable = `
CREATE TABLE IF NOT EXISTS checkpoint (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

const (
	keyRunState     = "run_state"
	keyOwner        = "owner"
	keyStartedAt    = "started_at"
	keyLastCommitAt = "last_commit_at"
	keyUpdatedAt    = "updated_at"
	watermarkPrefix = "watermark."
)

// sqliteRecord stores the checkpoint as key/value rows of a SQLite table.
// Each update runs as one IMMEDIATE transaction, which takes the database write
// lock before reading.
type sqliteRecord struct {
	db *sql.DB
}

// NewSQLiteStore creates a checkpoint store backed by the SQLite database at path
func NewSQLiteStore(ctx context.Context, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory for '%s': %w", path, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database '%s': %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createCheckpointTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create checkpoint table: %w", err)
	}

	return newStore(&sqliteRecord{db: db}, path+RunLockSuffix), nil
}

func (s *sqliteRecord) read(ctx context.Context) (*Checkpoint, error) {
	return readRows(ctx, s.db)
}

func (s *sqliteRecord) update(ctx context.Context, fn func(cp *Checkpoint) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cp, err := readRows(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(cp); err != nil {
		return err
	}
	if err := writeRows(ctx, tx, cp); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint transaction: %w", err)
	}
	return nil
}

func (s *sqliteRecord) close() error {
	return s.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readRows(ctx context.Context, q queryer) (*Checkpoint, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM checkpoint`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	defer rows.Close()

	cp := Empty()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		if err := cp.setKey(key, value); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint rows: %w", err)
	}
	return cp, nil
}

func writeRows(ctx context.Context, tx *sql.Tx, cp *Checkpoint) error {
	const upsert = `
INSERT INTO checkpoint (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	const remove = `DELETE FROM checkpoint WHERE key = ?`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, value := range cp.keys() {
		var err error
		if value == "" {
			_, err = tx.ExecContext(ctx, remove, key)
		} else {
			_, err = tx.ExecContext(ctx, upsert, key, value, now)
		}
		if err != nil {
			return fmt.Errorf("failed to write checkpoint key %s: %w", key, err)
		}
	}
	return nil
}

// keys flattens the checkpoint into key/value pairs; an empty value deletes the key
func (c *Checkpoint) keys() map[string]string {
	out := map[string]string{
		keyRunState:     string(c.RunState),
		keyOwner:        c.Owner,
		keyStartedAt:    formatTime(c.StartedAt),
		keyLastCommitAt: formatTime(c.LastCommitAt),
		keyUpdatedAt:    formatTime(&c.UpdatedAt),
	}
	for s, t := range c.Watermarks {
		out[watermarkPrefix+string(s)] = formatTime(&t)
	}
	return out
}

func (c *Checkpoint) setKey(key, value string) error {
	switch key {
	case keyRunState:
		c.RunState = RunState(value)
	case keyOwner:
		c.Owner = value
	case keyStartedAt, keyLastCommitAt, keyUpdatedAt:
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return fmt.Errorf("invalid checkpoint timestamp %s=%q: %w", key, value, err)
		}
		switch key {
		case keyStartedAt:
			c.StartedAt = &t
		case keyLastCommitAt:
			c.LastCommitAt = &t
		default:
			c.UpdatedAt = t
		}
	default:
		stream, ok := strings.CutPrefix(key, watermarkPrefix)
		if !ok {
			return errors.New("unknown checkpoint key " + key)
		}
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return fmt.Errorf("invalid watermark for stream %s: %w", stream, err)
		}
		c.Watermarks[Stream(stream)] = t
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakeyudi/pomosync/internal/state"
)

// StateKey is the single key the full snapshot is stored under.
const StateKey = "pomodoro_app"

// LocalStore is the durable local tier: a SQLite key/value table holding the
// snapshot JSON under StateKey.
type LocalStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLocalStore opens the database at path and initializes the schema.
func NewLocalStore(path string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	s := &LocalStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *LocalStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

// Close closes the database.
func (s *LocalStore) Close() error { return s.db.Close() }

// Load returns the stored snapshot overlaid on defaults. found is false when
// nothing usable is stored: no row, a read failure, or a corrupt payload. In
// every such case the default snapshot is returned.
func (s *LocalStore) Load(ctx context.Context) (snap state.Snapshot, found bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, StateKey).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("reading local state", "error", err)
		}
		return state.Defaults(), false
	}
	snap, err = state.Decode([]byte(value))
	if err != nil {
		s.logger.Warn("local state is corrupt, using defaults", "error", err)
		return snap, false
	}
	return snap, true
}

// Save writes snap, transient fields included.
func (s *LocalStore) Save(ctx context.Context, snap state.Snapshot) error {
	data, err := state.Encode(snap)
	if err != nil {
		return fmt.Errorf("encoding local state: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return RetryOnContention(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			StateKey, string(data), now)
		if err != nil {
			return fmt.Errorf("writing local state: %w", err)
		}
		return nil
	})
}

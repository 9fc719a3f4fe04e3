// Package store implements the persistence tiers: the ephemeral timer file,
// the durable local snapshot, and the HTTP client for the remote state
// server.
//
// Reads never fail toward the caller; a missing or unreadable payload comes
// back as the default snapshot. Writes return errors so the sync layer can
// log them, but nothing above it surfaces them to the user.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenDB opens (or creates) a SQLite database in WAL mode with a generous
// busy timeout, creating parent directories as needed.
func OpenDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

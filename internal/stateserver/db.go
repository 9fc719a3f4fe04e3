// Package stateserver is the remote tier: a single-user HTTP service that
// stores one snapshot document and serves it back.
//
//	GET /state  returns the stored snapshot JSON, or {} when nothing is stored
//	PUT /state  replaces it and answers {"ok":true}
//
// The server never interprets the snapshot; reconciliation happens on the
// clients at startup.
package stateserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fakeyudi/pomosync/internal/store"
)

// DB stores the snapshot document in a single-row SQLite table.
type DB struct {
	db *sql.DB
}

// OpenDB opens (or creates) the database at path.
func OpenDB(path string) (*DB, error) {
	db, err := store.OpenDB(path)
	if err != nil {
		return nil, err
	}
	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrate() error {
	_, err := d.db.Exec(`
	CREATE TABLE IF NOT EXISTS app_state (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		state      TEXT NOT NULL DEFAULT '{}',
		device     TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);
	INSERT INTO app_state (id, state, updated_at) VALUES (1, '{}', '')
		ON CONFLICT (id) DO NOTHING;`)
	return err
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Get returns the stored document, "{}" when nothing has been stored.
func (d *DB) Get(ctx context.Context) ([]byte, error) {
	var doc string
	err := d.db.QueryRowContext(ctx, `SELECT state FROM app_state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	return []byte(doc), nil
}

// Put replaces the stored document. device is recorded for diagnostics.
func (d *DB) Put(ctx context.Context, doc []byte, device string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return store.RetryOnContention(func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO app_state (id, state, device, updated_at) VALUES (1, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET state = excluded.state, device = excluded.device, updated_at = excluded.updated_at`,
			string(doc), device, now)
		if err != nil {
			return fmt.Errorf("writing state: %w", err)
		}
		return nil
	})
}

// LastWrite returns the device and time of the last Put, empty if none.
func (d *DB) LastWrite(ctx context.Context) (device, updatedAt string, err error) {
	err = d.db.QueryRowContext(ctx, `SELECT device, updated_at FROM app_state WHERE id = 1`).Scan(&device, &updatedAt)
	if err != nil {
		return "", "", fmt.Errorf("reading state metadata: %w", err)
	}
	return device, updatedAt, nil
}

// Package sqlitedb opens the SQLite files behind the tracking database and
// the run history, applying pragmas and a single-row schema version check.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSchemaMismatch reports a database created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Schema describes the tables a store expects. DDL must create a
// schema_version(version INTEGER) table alongside its own tables.
type Schema struct {
	Name        string
	DDL         string
	Version     int
	ForeignKeys bool
}

// Open creates path's parent directory, opens the database, and creates or
// checks the schema. Pragmas travel in the DSN so every pooled connection
// carries them, busy_timeout first. Transactions begin IMMEDIATE so
// concurrent writers queue on busy_timeout instead of failing on lock
// upgrade.
func Open(ctx context.Context, path string, schema Schema) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", schema.Name, err)
	}
	db, err := sql.Open("sqlite", DSN(path, schema.ForeignKeys))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", schema.Name, err)
	}
	if err := RetryBusy(ctx, func() error { return ensureSchema(ctx, db, schema) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// DSN returns the modernc.org/sqlite data source name for path.
func DSN(path string, foreignKeys bool) string {
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
	}
	if foreignKeys {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	params = append(params, "_txlock=immediate")
	return path + "?" + strings.Join(params, "&")
}

// ensureSchema checks and creates the schema in one transaction, so two
// processes opening a fresh file cannot both create it.
func ensureSchema(ctx context.Context, db *sql.DB, schema Schema) error {
	return Tx(ctx, db, nil, func(tx *sql.Tx) error {
		var present int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
		).Scan(&present); err != nil {
			return fmt.Errorf("%s: inspect schema: %w", schema.Name, err)
		}
		if present == 0 {
			if _, err := tx.ExecContext(ctx, schema.DDL); err != nil {
				return fmt.Errorf("%s: create schema: %w", schema.Name, err)
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schema.Version)
			return err
		}
		var version int
		if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("%s: read schema version: %w", schema.Name, err)
		}
		if version != schema.Version {
			return fmt.Errorf("%w: %s database has version %d, expected %d", ErrSchemaMismatch, schema.Name, version, schema.Version)
		}
		return nil
	})
}

// Tx runs fn in a transaction and commits when fn returns nil.
func Tx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

const (
	busyCode       = 5
	busyAttempts   = 5
	busyBackoff    = 10 * time.Millisecond
	busyMaxBackoff = 200 * time.Millisecond
)

// IsBusy reports SQLITE_BUSY, by driver code or message.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == busyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// RetryBusy reruns op with exponential backoff while it fails with
// SQLITE_BUSY. The last error is returned unchanged.
func RetryBusy(ctx context.Context, op func() error) error {
	delay := busyBackoff
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !IsBusy(err) || attempt == busyAttempts {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyMaxBackoff)
	}
}

// NullString maps blank strings to SQL NULL.
func NullString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

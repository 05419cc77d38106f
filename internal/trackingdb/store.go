package trackingdb

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"

	"pmt/internal/services"
	"pmt/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 2

// ErrSchemaMismatch reports a database written by another schema version.
var ErrSchemaMismatch = sqlitedb.ErrSchemaMismatch

// Store is the production tracking database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the tracking database at path, creating it and its schema
// when missing. Any failure to reach the database reports
// services.ErrTargetUnavailable.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrTargetUnavailable, "tracking", "open", "database path is empty", nil)
	}
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{
		Name:        "tracking",
		DDL:         schemaSQL,
		Version:     schemaVersion,
		ForeignKeys: true,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTargetUnavailable, "tracking", "open", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "tracking", "ping", s.path, err)
	}
	return nil
}

// Update runs fn in a write transaction, committing when fn returns nil.
// Busy databases are retried before reporting services.ErrTargetUnavailable.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	err := sqlitedb.RetryBusy(ctx, func() error {
		return sqlitedb.Tx(ctx, s.db, nil, func(tx *sql.Tx) error {
			return fn(&Tx{tx: tx, ctx: ctx})
		})
	})
	if sqlitedb.IsBusy(err) {
		return services.Wrap(services.ErrTargetUnavailable, "tracking", "transaction", "database is busy", err)
	}
	return err
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return services.Wrap(services.ErrTargetUnavailable, "tracking", "read", s.path, err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&Tx{tx: sqlTx, ctx: ctx})
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

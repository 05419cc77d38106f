package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pmt/internal/sqlitedb"
	"pmt/internal/writer"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrNotFound reports an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run is one recorded translation.
type Run struct {
	ID         string                        `json:"id"`
	Reader     string                        `json:"reader"`
	Writer     string                        `json:"writer"`
	Mode       string                        `json:"mode"`
	State      string                        `json:"state"`
	ErrorKind  string                        `json:"error_kind,omitempty"`
	ErrorStage string                        `json:"error_stage,omitempty"`
	Message    string                        `json:"message,omitempty"`
	Workspace  string                        `json:"workspace,omitempty"`
	Output     string                        `json:"output,omitempty"`
	Counts     map[writer.Kind]writer.Counts `json:"counts,omitempty"`
	StartedAt  time.Time                     `json:"started_at"`
	UpdatedAt  time.Time                     `json:"updated_at"`
	FinishedAt *time.Time                    `json:"finished_at,omitempty"`
}

// Finished reports whether the run reached a terminal state.
func (r Run) Finished() bool { return r.FinishedAt != nil }

// Completion is the terminal record of a run.
type Completion struct {
	State      string
	ErrorKind  string
	ErrorStage string
	Message    string
	Workspace  string
	Output     string
	Counts     map[writer.Kind]writer.Counts
}

// Store persists translation runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{Name: "history", DDL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records a new run. run.ID must be set.
func (s *Store) Begin(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("history: run id is required")
	}
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, reader, writer, mode, state, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Reader, run.Writer, run.Mode, run.State,
		run.StartedAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Transition updates the current state of a run.
func (s *Store) Transition(ctx context.Context, id, state string) error {
	return s.exec(ctx, id, "UPDATE runs SET state = ?, updated_at = ? WHERE id = ?",
		state, time.Now().UTC().Format(time.RFC3339Nano), id)
}

// Finish records the terminal state of a run.
func (s *Store) Finish(ctx context.Context, id string, c Completion) error {
	var counts any
	if len(c.Counts) > 0 {
		data, err := json.Marshal(c.Counts)
		if err != nil {
			return fmt.Errorf("encode counts: %w", err)
		}
		counts = string(data)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.exec(ctx, id,
		`UPDATE runs SET state = ?, error_kind = ?, error_stage = ?, message = ?, workspace = ?,
		 output = ?, counts_json = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		c.State, sqlitedb.NullString(c.ErrorKind), sqlitedb.NullString(c.ErrorStage), sqlitedb.NullString(c.Message),
		sqlitedb.NullString(c.Workspace), sqlitedb.NullString(c.Output), counts, now, now, id)
}

func (s *Store) exec(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const runColumns = `id, reader, writer, mode, state, error_kind, error_stage, message, workspace, output,
	counts_json, started_at, updated_at, finished_at`

// Get returns the run with id. A unique id prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, errors.New("history: run id is required")
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\\' ORDER BY id LIMIT 2",
		id, likePrefix(id))
	if err != nil {
		return Run{}, fmt.Errorf("load run: %w", err)
	}
	defer rows.Close()
	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		if run.ID == id {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// List returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Clear removes finished runs, or every run when all is set. It returns the
// number of removed runs.
func (s *Store) Clear(ctx context.Context, all bool) (int64, error) {
	query := "DELETE FROM runs WHERE finished_at IS NOT NULL"
	if all {
		query = "DELETE FROM runs"
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run                                               Run
		errorKind, errorStage, message, workspace, output sql.NullString
		counts, finished                                  sql.NullString
		started, updated                                  string
	)
	if err := scanner.Scan(&run.ID, &run.Reader, &run.Writer, &run.Mode, &run.State,
		&errorKind, &errorStage, &message, &workspace, &output,
		&counts, &started, &updated, &finished); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.ErrorKind = errorKind.String
	run.ErrorStage = errorStage.String
	run.Message = message.String
	run.Workspace = workspace.String
	run.Output = output.String
	run.StartedAt = parseTime(started)
	run.UpdatedAt = parseTime(updated)
	if finished.Valid {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &run.Counts); err != nil {
			return Run{}, fmt.Errorf("decode counts of run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// likePrefix escapes LIKE wildcards in value and matches it as a prefix.
func likePrefix(value string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(value) + "%"
}

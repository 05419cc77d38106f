package trackingdb

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"pmt/internal/sqlitedb"
)

// UserStatusDisabled marks users created on behalf of review data.
const UserStatusDisabled = "dis"

// UserRow is one tracked user. Login is the full user name.
type UserRow struct {
	Login     string
	FirstName string
	LastName  string
	Role      string
	Status    string
}

// ReplyRow is one reply on a note.
type ReplyRow struct {
	Author string
	Body   string
}

// NoteRow is a review note attached to one entity. Subject identifies the note
// within its entity.
type NoteRow struct {
	ID          int64
	EntityType  string
	EntityCode  string
	Subject     string
	Body        string
	Author      string
	Replies     []ReplyRow
	Attachments []string
}

// Same reports whether two notes carry the same content, ignoring ID.
func (n NoteRow) Same(o NoteRow) bool {
	return n.EntityType == o.EntityType && n.EntityCode == o.EntityCode &&
		n.Subject == o.Subject && n.Body == o.Body && n.Author == o.Author &&
		slices.Equal(n.Replies, o.Replies) && slices.Equal(n.Attachments, o.Attachments)
}

// PublishedFileRow is a published file. Upstream lists the codes it was
// derived from, nearest first.
type PublishedFileRow struct {
	Code       string
	EntityType string
	EntityCode string
	Task       string
	PathCache  string
	LocalPath  string
	Upstream   []string
}

// Same reports whether two published files carry the same content.
func (p PublishedFileRow) Same(o PublishedFileRow) bool {
	return p.Code == o.Code && p.EntityType == o.EntityType && p.EntityCode == o.EntityCode &&
		p.Task == o.Task && p.PathCache == o.PathCache && p.LocalPath == o.LocalPath &&
		slices.Equal(p.Upstream, o.Upstream)
}

type VersionRow struct {
	Code        string
	EntityType  string
	EntityCode  string
	Task        string
	Movie       string
	Description string
}

// User returns the user with login.
func (t *Tx) User(login string) (UserRow, bool, error) {
	var row UserRow
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT login, firstname, lastname, role, status FROM users WHERE login = ?", login,
	).Scan(&row.Login, &row.FirstName, &row.LastName, &row.Role, &row.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRow{}, false, nil
	}
	if err != nil {
		return UserRow{}, false, fmt.Errorf("load user %s: %w", login, err)
	}
	return row, true, nil
}

// InsertUser creates a user.
func (t *Tx) InsertUser(row UserRow) error {
	if row.Status == "" {
		row.Status = UserStatusDisabled
	}
	_, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO users (login, firstname, lastname, role, status) VALUES (?, ?, ?, ?, ?)",
		row.Login, row.FirstName, row.LastName, row.Role, row.Status)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", row.Login, err)
	}
	return nil
}

// Note returns the note with subject on one entity, with its replies and
// attachments.
func (t *Tx) Note(projectID int64, entityType, entityCode, subject string) (NoteRow, bool, error) {
	row := NoteRow{EntityType: entityType, EntityCode: entityCode, Subject: subject}
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id, body, author FROM notes
		 WHERE project_id = ? AND entity_type = ? AND entity_code = ? AND subject = ?`,
		projectID, entityType, entityCode, subject).Scan(&row.ID, &row.Body, &row.Author)
	if errors.Is(err, sql.ErrNoRows) {
		return NoteRow{}, false, nil
	}
	if err != nil {
		return NoteRow{}, false, fmt.Errorf("load note %s/%s: %w", entityCode, subject, err)
	}
	if row.Replies, err = t.replies(row.ID); err != nil {
		return NoteRow{}, false, err
	}
	if row.Attachments, err = t.attachments(row.ID); err != nil {
		return NoteRow{}, false, err
	}
	return row, true, nil
}

func (t *Tx) replies(noteID int64) ([]ReplyRow, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT author, body FROM note_replies WHERE note_id = ? ORDER BY position", noteID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()
	var out []ReplyRow
	for rows.Next() {
		var r ReplyRow
		if err := rows.Scan(&r.Author, &r.Body); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *Tx) attachments(noteID int64) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT path FROM note_attachments WHERE note_id = ? ORDER BY position", noteID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PutNote inserts or replaces a note keyed by entity and subject, rewriting
// its replies and attachments.
func (t *Tx) PutNote(projectID int64, row NoteRow) error {
	err := t.tx.QueryRowContext(t.ctx,
		`INSERT INTO notes (project_id, entity_type, entity_code, subject, body, author) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, entity_type, entity_code, subject) DO UPDATE SET
		   body = excluded.body, author = excluded.author
		 RETURNING id`,
		projectID, row.EntityType, row.EntityCode, row.Subject, row.Body, row.Author).Scan(&row.ID)
	if err != nil {
		return fmt.Errorf("put note %s/%s: %w", row.EntityCode, row.Subject, err)
	}
	for _, table := range []string{"note_replies", "note_attachments"} {
		if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM "+table+" WHERE note_id = ?", row.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for i, r := range row.Replies {
		if _, err := t.tx.ExecContext(t.ctx,
			"INSERT INTO note_replies (note_id, position, author, body) VALUES (?, ?, ?, ?)",
			row.ID, i, r.Author, r.Body); err != nil {
			return fmt.Errorf("insert reply %d on note %s: %w", i, row.Subject, err)
		}
	}
	for i, p := range row.Attachments {
		if _, err := t.tx.ExecContext(t.ctx,
			"INSERT INTO note_attachments (note_id, position, path) VALUES (?, ?, ?)",
			row.ID, i, p); err != nil {
			return fmt.Errorf("insert attachment %s: %w", p, err)
		}
	}
	return nil
}

// PublishedFile returns one published file with its upstream chain.
func (t *Tx) PublishedFile(projectID int64, code string) (PublishedFileRow, bool, error) {
	var (
		row  PublishedFileRow
		task sql.NullString
	)
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT code, entity_type, entity_code, task_step, path_cache, local_path
		 FROM published_files WHERE project_id = ? AND code = ?`, projectID, code,
	).Scan(&row.Code, &row.EntityType, &row.EntityCode, &task, &row.PathCache, &row.LocalPath)
	if errors.Is(err, sql.ErrNoRows) {
		return PublishedFileRow{}, false, nil
	}
	if err != nil {
		return PublishedFileRow{}, false, fmt.Errorf("load published file %s: %w", code, err)
	}
	row.Task = task.String

	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT upstream_code FROM published_file_upstreams WHERE project_id = ? AND code = ? ORDER BY position",
		projectID, code)
	if err != nil {
		return PublishedFileRow{}, false, fmt.Errorf("list upstream of %s: %w", code, err)
	}
	defer rows.Close()
	for rows.Next() {
		var up string
		if err := rows.Scan(&up); err != nil {
			return PublishedFileRow{}, false, err
		}
		row.Upstream = append(row.Upstream, up)
	}
	return row, true, rows.Err()
}

// PutPublishedFile inserts or replaces a published file and its upstream chain.
func (t *Tx) PutPublishedFile(projectID int64, row PublishedFileRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO published_files (project_id, code, entity_type, entity_code, task_step, path_cache, local_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, code) DO UPDATE SET
		   entity_type = excluded.entity_type, entity_code = excluded.entity_code,
		   task_step = excluded.task_step, path_cache = excluded.path_cache, local_path = excluded.local_path`,
		projectID, row.Code, row.EntityType, row.EntityCode, sqlitedb.NullString(row.Task), row.PathCache, row.LocalPath)
	if err != nil {
		return fmt.Errorf("put published file %s: %w", row.Code, err)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM published_file_upstreams WHERE project_id = ? AND code = ?", projectID, row.Code); err != nil {
		return fmt.Errorf("clear upstream of %s: %w", row.Code, err)
	}
	for i, up := range row.Upstream {
		if _, err := t.tx.ExecContext(t.ctx,
			"INSERT INTO published_file_upstreams (project_id, code, upstream_code, position) VALUES (?, ?, ?, ?)",
			projectID, row.Code, up, i); err != nil {
			return fmt.Errorf("insert upstream %s of %s: %w", up, row.Code, err)
		}
	}
	return nil
}

// Version returns one version.
func (t *Tx) Version(projectID int64, code string) (VersionRow, bool, error) {
	var (
		row                      VersionRow
		task, movie, description sql.NullString
	)
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT code, entity_type, entity_code, task_step, movie, description
		 FROM versions WHERE project_id = ? AND code = ?`, projectID, code,
	).Scan(&row.Code, &row.EntityType, &row.EntityCode, &task, &movie, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return VersionRow{}, false, nil
	}
	if err != nil {
		return VersionRow{}, false, fmt.Errorf("load version %s: %w", code, err)
	}
	row.Task, row.Movie, row.Description = task.String, movie.String, description.String
	return row, true, nil
}

// PutVersion inserts or replaces a version.
func (t *Tx) PutVersion(projectID int64, row VersionRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO versions (project_id, code, entity_type, entity_code, task_step, movie, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, code) DO UPDATE SET
		   entity_type = excluded.entity_type, entity_code = excluded.entity_code,
		   task_step = excluded.task_step, movie = excluded.movie, description = excluded.description`,
		projectID, row.Code, row.EntityType, row.EntityCode, sqlitedb.NullString(row.Task),
		sqlitedb.NullString(row.Movie), sqlitedb.NullString(row.Description))
	if err != nil {
		return fmt.Errorf("put version %s: %w", row.Code, err)
	}
	return nil
}

// HasStep reports whether the entity has a task under step.
func (t *Tx) HasStep(projectID int64, entityType, entityCode, step string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT COUNT(1) FROM tasks WHERE project_id = ? AND entity_type = ? AND entity_code = ? AND step = ?",
		projectID, entityType, entityCode, step).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("load step %s/%s: %w", entityCode, step, err)
	}
	return n > 0, nil
}

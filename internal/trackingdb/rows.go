package trackingdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pmt/internal/sqlitedb"
)

// Entity types used by tasks and filesystem locations.
const (
	EntityAsset    = "asset"
	EntitySequence = "sequence"
	EntityShot     = "shot"
)

// RoleCharacter is the link role of shot characters. Track links use the
// track name as role.
const RoleCharacter = "character"

// Tx is a transaction over the tracking tables.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

// ProjectRow is one tracked project.
type ProjectRow struct {
	ID       int64
	Code     string
	Name     string
	TankName string
	Source   string
	Archived bool
}

// Same reports whether two rows carry the same content.
func (p ProjectRow) Same(o ProjectRow) bool {
	return p.Code == o.Code && p.Name == o.Name && p.TankName == o.TankName &&
		p.Source == o.Source && p.Archived == o.Archived
}

type AssetRow struct {
	Code        string
	Name        string
	Type        string
	Placeholder string
	Reference   string
}

type SequenceRow struct {
	Code     string
	Name     string
	Parent   string
	Position int
}

type ShotRow struct {
	Code     string
	Sequence string
	Name     string
	CutIn    int
	Duration int
	Location string
	Lighting string
	Position int
}

// TaskRow is identified by all of its fields.
type TaskRow struct {
	EntityType string
	EntityCode string
	Step       string
	Content    string
}

// LinkRow binds an asset to a shot under a role: character or a track name.
type LinkRow struct {
	Shot     string
	Asset    string
	Role     string
	Position int
}

type LocationRow struct {
	EntityType string
	EntityCode string
	Step       string
	Path       string
}

// Project returns the project with code.
func (t *Tx) Project(code string) (ProjectRow, bool, error) {
	var (
		row      ProjectRow
		source   sql.NullString
		archived int
	)
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT id, code, name, tank_name, source, archived FROM projects WHERE code = ?", code,
	).Scan(&row.ID, &row.Code, &row.Name, &row.TankName, &source, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return ProjectRow{}, false, nil
	}
	if err != nil {
		return ProjectRow{}, false, fmt.Errorf("load project %s: %w", code, err)
	}
	row.Source = source.String
	row.Archived = archived != 0
	return row, true, nil
}

// Projects lists projects ordered by code.
func (t *Tx) Projects() ([]ProjectRow, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT id, code, name, tank_name, source, archived FROM projects ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []ProjectRow
	for rows.Next() {
		var (
			row      ProjectRow
			source   sql.NullString
			archived int
		)
		if err := rows.Scan(&row.ID, &row.Code, &row.Name, &row.TankName, &source, &archived); err != nil {
			return nil, err
		}
		row.Source = source.String
		row.Archived = archived != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

// InsertProject creates a project and returns it with its id.
func (t *Tx) InsertProject(row ProjectRow) (ProjectRow, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO projects (code, name, tank_name, source, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.Code, row.Name, row.TankName, sqlitedb.NullString(row.Source), boolToInt(row.Archived), now, now)
	if err != nil {
		return ProjectRow{}, fmt.Errorf("insert project %s: %w", row.Code, err)
	}
	if row.ID, err = res.LastInsertId(); err != nil {
		return ProjectRow{}, err
	}
	return row, nil
}

// UpdateProject rewrites the project identified by row.ID, including its code.
func (t *Tx) UpdateProject(row ProjectRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE projects SET code = ?, name = ?, tank_name = ?, source = ?, archived = ?, updated_at = ?
		 WHERE id = ?`,
		row.Code, row.Name, row.TankName, sqlitedb.NullString(row.Source), boolToInt(row.Archived),
		time.Now().UTC().Format(time.RFC3339Nano), row.ID)
	if err != nil {
		return fmt.Errorf("update project %s: %w", row.Code, err)
	}
	return nil
}

// Asset returns one asset of the project.
func (t *Tx) Asset(projectID int64, code string) (AssetRow, bool, error) {
	var (
		row                    AssetRow
		name, placeholder, ref sql.NullString
	)
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT code, name, asset_type, placeholder, reference FROM assets WHERE project_id = ? AND code = ?",
		projectID, code,
	).Scan(&row.Code, &name, &row.Type, &placeholder, &ref)
	if errors.Is(err, sql.ErrNoRows) {
		return AssetRow{}, false, nil
	}
	if err != nil {
		return AssetRow{}, false, fmt.Errorf("load asset %s: %w", code, err)
	}
	row.Name, row.Placeholder, row.Reference = name.String, placeholder.String, ref.String
	return row, true, nil
}

// Assets lists the project's assets ordered by code.
func (t *Tx) Assets(projectID int64) ([]AssetRow, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT code, name, asset_type, placeholder, reference FROM assets WHERE project_id = ? ORDER BY code",
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	var out []AssetRow
	for rows.Next() {
		var (
			row                    AssetRow
			name, placeholder, ref sql.NullString
		)
		if err := rows.Scan(&row.Code, &name, &row.Type, &placeholder, &ref); err != nil {
			return nil, err
		}
		row.Name, row.Placeholder, row.Reference = name.String, placeholder.String, ref.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// PutAsset inserts or replaces an asset.
func (t *Tx) PutAsset(projectID int64, row AssetRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO assets (project_id, code, name, asset_type, placeholder, reference) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, code) DO UPDATE SET
		   name = excluded.name, asset_type = excluded.asset_type,
		   placeholder = excluded.placeholder, reference = excluded.reference`,
		projectID, row.Code, sqlitedb.NullString(row.Name), row.Type, sqlitedb.NullString(row.Placeholder), sqlitedb.NullString(row.Reference))
	if err != nil {
		return fmt.Errorf("put asset %s: %w", row.Code, err)
	}
	return nil
}

// Sequence returns one sequence of the project.
func (t *Tx) Sequence(projectID int64, code string) (SequenceRow, bool, error) {
	var (
		row          SequenceRow
		name, parent sql.NullString
	)
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT code, name, parent_code, position FROM sequences WHERE project_id = ? AND code = ?",
		projectID, code,
	).Scan(&row.Code, &name, &parent, &row.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return SequenceRow{}, false, nil
	}
	if err != nil {
		return SequenceRow{}, false, fmt.Errorf("load sequence %s: %w", code, err)
	}
	row.Name, row.Parent = name.String, parent.String
	return row, true, nil
}

// Sequences lists the project's sequences ordered by parent then position.
func (t *Tx) Sequences(projectID int64) ([]SequenceRow, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT code, name, parent_code, position FROM sequences WHERE project_id = ?
		 ORDER BY COALESCE(parent_code, ''), position, code`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()
	var out []SequenceRow
	for rows.Next() {
		var (
			row          SequenceRow
			name, parent sql.NullString
		)
		if err := rows.Scan(&row.Code, &name, &parent, &row.Position); err != nil {
			return nil, err
		}
		row.Name, row.Parent = name.String, parent.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// PutSequence inserts or replaces a sequence.
func (t *Tx) PutSequence(projectID int64, row SequenceRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO sequences (project_id, code, name, parent_code, position) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, code) DO UPDATE SET
		   name = excluded.name, parent_code = excluded.parent_code, position = excluded.position`,
		projectID, row.Code, sqlitedb.NullString(row.Name), sqlitedb.NullString(row.Parent), row.Position)
	if err != nil {
		return fmt.Errorf("put sequence %s: %w", row.Code, err)
	}
	return nil
}

const shotColumns = "code, sequence_code, name, cut_in, cut_duration, location, lighting, position"

func scanShot(scanner interface{ Scan(dest ...any) error }) (ShotRow, error) {
	var (
		row                      ShotRow
		name, location, lighting sql.NullString
	)
	if err := scanner.Scan(&row.Code, &row.Sequence, &name, &row.CutIn, &row.Duration, &location, &lighting, &row.Position); err != nil {
		return ShotRow{}, err
	}
	row.Name, row.Location, row.Lighting = name.String, location.String, lighting.String
	return row, nil
}

// Shot returns one shot of the project.
func (t *Tx) Shot(projectID int64, code string) (ShotRow, bool, error) {
	row, err := scanShot(t.tx.QueryRowContext(t.ctx,
		"SELECT "+shotColumns+" FROM shots WHERE project_id = ? AND code = ?", projectID, code))
	if errors.Is(err, sql.ErrNoRows) {
		return ShotRow{}, false, nil
	}
	if err != nil {
		return ShotRow{}, false, fmt.Errorf("load shot %s: %w", code, err)
	}
	return row, true, nil
}

// Shots lists the shots of one sequence in position order.
func (t *Tx) Shots(projectID int64, sequence string) ([]ShotRow, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT "+shotColumns+" FROM shots WHERE project_id = ? AND sequence_code = ? ORDER BY position, code",
		projectID, sequence)
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	defer rows.Close()
	var out []ShotRow
	for rows.Next() {
		row, err := scanShot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PutShot inserts or replaces a shot.
func (t *Tx) PutShot(projectID int64, row ShotRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO shots (project_id, `+shotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, code) DO UPDATE SET
		   sequence_code = excluded.sequence_code, name = excluded.name, cut_in = excluded.cut_in,
		   cut_duration = excluded.cut_duration, location = excluded.location,
		   lighting = excluded.lighting, position = excluded.position`,
		projectID, row.Code, row.Sequence, sqlitedb.NullString(row.Name), row.CutIn, row.Duration,
		sqlitedb.NullString(row.Location), sqlitedb.NullString(row.Lighting), row.Position)
	if err != nil {
		return fmt.Errorf("put shot %s: %w", row.Code, err)
	}
	return nil
}

// HasTask reports whether the task exists.
func (t *Tx) HasTask(projectID int64, row TaskRow) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT COUNT(1) FROM tasks WHERE project_id = ? AND entity_type = ? AND entity_code = ? AND step = ? AND content = ?`,
		projectID, row.EntityType, row.EntityCode, row.Step, row.Content).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("load task: %w", err)
	}
	return n > 0, nil
}

// InsertTask creates a task.
func (t *Tx) InsertTask(projectID int64, row TaskRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO tasks (project_id, entity_type, entity_code, step, content) VALUES (?, ?, ?, ?, ?)",
		projectID, row.EntityType, row.EntityCode, row.Step, row.Content)
	if err != nil {
		return fmt.Errorf("insert task %s/%s: %w", row.EntityCode, row.Content, err)
	}
	return nil
}

// Tasks lists the tasks of one entity ordered by step and content.
func (t *Tx) Tasks(projectID int64, entityType, entityCode string) ([]TaskRow, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT entity_type, entity_code, step, content FROM tasks
		 WHERE project_id = ? AND entity_type = ? AND entity_code = ? ORDER BY step, content`,
		projectID, entityType, entityCode)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []TaskRow
	for rows.Next() {
		var row TaskRow
		if err := rows.Scan(&row.EntityType, &row.EntityCode, &row.Step, &row.Content); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Link returns the link between a shot and an asset under role.
func (t *Tx) Link(projectID int64, shot, asset, role string) (LinkRow, bool, error) {
	row := LinkRow{Shot: shot, Asset: asset, Role: role}
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT position FROM shot_assets WHERE project_id = ? AND shot_code = ? AND asset_code = ? AND role = ?",
		projectID, shot, asset, role).Scan(&row.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return LinkRow{}, false, nil
	}
	if err != nil {
		return LinkRow{}, false, fmt.Errorf("load link %s/%s: %w", shot, asset, err)
	}
	return row, true, nil
}

// PutLink inserts or replaces a shot asset link.
func (t *Tx) PutLink(projectID int64, row LinkRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO shot_assets (project_id, shot_code, asset_code, role, position) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, shot_code, asset_code, role) DO UPDATE SET position = excluded.position`,
		projectID, row.Shot, row.Asset, row.Role, row.Position)
	if err != nil {
		return fmt.Errorf("put link %s/%s: %w", row.Shot, row.Asset, err)
	}
	return nil
}

// Links lists the links of one shot ordered by role and position.
func (t *Tx) Links(projectID int64, shot string) ([]LinkRow, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT shot_code, asset_code, role, position FROM shot_assets
		 WHERE project_id = ? AND shot_code = ? ORDER BY role, position, asset_code`,
		projectID, shot)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()
	var out []LinkRow
	for rows.Next() {
		var row LinkRow
		if err := rows.Scan(&row.Shot, &row.Asset, &row.Role, &row.Position); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Location returns the filesystem location of an entity step.
func (t *Tx) Location(projectID int64, entityType, entityCode, step string) (LocationRow, bool, error) {
	row := LocationRow{EntityType: entityType, EntityCode: entityCode, Step: step}
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT path FROM filesystem_locations WHERE project_id = ? AND entity_type = ? AND entity_code = ? AND step = ?",
		projectID, entityType, entityCode, step).Scan(&row.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return LocationRow{}, false, nil
	}
	if err != nil {
		return LocationRow{}, false, fmt.Errorf("load location %s/%s: %w", entityCode, step, err)
	}
	return row, true, nil
}

// PutLocation inserts or replaces a filesystem location.
func (t *Tx) PutLocation(projectID int64, row LocationRow) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO filesystem_locations (project_id, entity_type, entity_code, step, path) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, entity_type, entity_code, step) DO UPDATE SET path = excluded.path`,
		projectID, row.EntityType, row.EntityCode, row.Step, row.Path)
	if err != nil {
		return fmt.Errorf("put location %s/%s: %w", row.EntityCode, row.Step, err)
	}
	return nil
}

// Count returns the number of rows in table for the project. table must be
// one of the tracking tables.
func (t *Tx) Count(projectID int64, table string) (int, error) {
	switch table {
	case "assets", "tasks", "sequences", "shots", "shot_assets", "filesystem_locations",
		"notes", "published_files", "versions":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := t.tx.QueryRowContext(t.ctx, "SELECT COUNT(1) FROM "+table+" WHERE project_id = ?", projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

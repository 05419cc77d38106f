package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/google/uuid"

	"pmt/internal/logging"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/textutil"
	"pmt/internal/trackingdb"
	"pmt/internal/writer"
)

// Writer records a project in the production tracking database.
type Writer struct {
	cfg    Config
	locker *writer.Locker
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithLocker sets the per-identifier locker.
func WithLocker(l *writer.Locker) Option {
	return func(w *Writer) { w.locker = l }
}

// New returns a tracking writer.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Writer {
	w := &Writer{cfg: cfg, logger: logging.NewComponentLogger(logger, "tracking")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements writer.Writer.
func (w *Writer) Name() string { return "tracking" }

// Ping opens the database named by the database argument or the configured path.
func (w *Writer) Ping(ctx context.Context, args services.Args) error {
	store, err := trackingdb.Open(ctx, args.String("database", w.cfg.DatabasePath))
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Ping(ctx)
}

// Write records p in one transaction. Recognized arguments: database (path),
// code (project code, defaults to the project name), review (a review file of
// notes, published files and versions).
func (w *Writer) Write(ctx context.Context, p *project.Project, args services.Args) (*writer.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dbPath := args.String("database", w.cfg.DatabasePath)
	code := args.String("code", p.Name)
	var review *Review
	if reviewPath := args.String("review", ""); reviewPath != "" {
		var err error
		if review, err = LoadReview(reviewPath); err != nil {
			return nil, err
		}
	}

	var result *writer.Result
	err := w.locker.With(ctx, writer.LockKey("tracking", dbPath, code), func() error {
		store, err := trackingdb.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Update(ctx, func(tx *trackingdb.Tx) error {
			result = writer.NewResult(w.Name(), dbPath)
			b := &build{cfg: w.cfg, tx: tx, project: p, result: result, review: review}
			return b.run(code)
		})
	})
	if err != nil {
		return nil, err
	}

	totals := result.Totals()
	w.logger.Info("tracking project written",
		logging.String("database", dbPath),
		logging.String("project", code),
		logging.Int("created", totals.Created),
		logging.Int("updated", totals.Updated),
		logging.Int("skipped", totals.Skipped),
	)
	return result, nil
}

type build struct {
	cfg       Config
	tx        *trackingdb.Tx
	project   *project.Project
	result    *writer.Result
	review    *Review
	projectID int64
	code      string
	tank      string
}

func (b *build) run(code string) error {
	if err := b.ensureProject(code); err != nil {
		return err
	}
	for _, id := range b.project.AssetIDs() {
		if err := b.ensureAsset(b.project.Assets[id]); err != nil {
			return err
		}
	}
	if err := b.ensureSequences(b.project.Sequences, ""); err != nil {
		return err
	}
	for _, ref := range b.project.Shots() {
		if err := b.ensureShot(ref); err != nil {
			return err
		}
	}
	if err := b.ensureLocations(); err != nil {
		return err
	}
	if err := b.ensureUsers(); err != nil {
		return err
	}
	if b.review == nil {
		return nil
	}
	return b.ensureReview(b.review)
}

func tankName(code string) string {
	if tank := textutil.TankName(code); tank != "" {
		return tank
	}
	return "project"
}

func shortID() string {
	return uuid.NewString()[:8]
}

func (b *build) ensureProject(code string) error {
	want := trackingdb.ProjectRow{
		Code:     code,
		Name:     b.project.Name,
		TankName: tankName(code),
		Source:   b.project.Metadata.Source,
	}
	existing, found, err := b.tx.Project(code)
	if err != nil {
		return err
	}
	same := found && existing.Same(want)

	if found && !same && b.cfg.Collision != CollisionNone {
		switch b.cfg.Collision {
		case CollisionRename:
			want.Code = code + "_" + shortID()
			want.TankName = tankName(want.Code)
			b.result.Warn(fmt.Sprintf("project %s exists with different content; created %s", code, want.Code))
		case CollisionArchive:
			archived := existing
			archived.Code = code + "_archived_" + shortID()
			archived.Archived = true
			if err := b.tx.UpdateProject(archived); err != nil {
				return err
			}
			b.result.Record(writer.KindProject, writer.Updated)
			b.result.Warn(fmt.Sprintf("project %s archived as %s", code, archived.Code))
		}
		return b.insertProject(want)
	}

	outcome, err := b.cfg.Policy.Decide(writer.KindProject, code, found, same)
	if err != nil {
		return err
	}
	switch outcome {
	case writer.Created:
		return b.insertProject(want)
	case writer.Updated:
		want.ID = existing.ID
		if err := b.tx.UpdateProject(want); err != nil {
			return err
		}
	}
	b.projectID, b.code, b.tank = existing.ID, existing.Code, existing.TankName
	b.result.Record(writer.KindProject, outcome)
	return nil
}

func (b *build) insertProject(row trackingdb.ProjectRow) error {
	created, err := b.tx.InsertProject(row)
	if err != nil {
		return err
	}
	b.projectID, b.code, b.tank = created.ID, created.Code, created.TankName
	b.result.Record(writer.KindProject, writer.Created)
	return nil
}

func (b *build) ensureAsset(asset *project.Asset) error {
	want := trackingdb.AssetRow{
		Code:        asset.ID,
		Name:        asset.Name,
		Type:        asset.Type,
		Placeholder: asset.Placeholder,
		Reference:   asset.Reference,
	}
	existing, found, err := b.tx.Asset(b.projectID, asset.ID)
	if err != nil {
		return err
	}
	outcome, err := b.cfg.Policy.Decide(writer.KindAsset, asset.ID, found, found && existing == want)
	if err != nil {
		return err
	}
	if outcome != writer.Skipped {
		if err := b.tx.PutAsset(b.projectID, want); err != nil {
			return err
		}
	}
	b.result.Record(writer.KindAsset, outcome)

	tasks := b.departments(asset)
	for _, dept := range sortedKeys(tasks) {
		contents := tasks[dept]
		if len(contents) == 0 {
			contents = []string{dept}
		}
		for _, content := range contents {
			task := trackingdb.TaskRow{
				EntityType: trackingdb.EntityAsset,
				EntityCode: asset.ID,
				Step:       dept,
				Content:    content,
			}
			if err := b.ensureTask(task); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *build) departments(asset *project.Asset) map[string][]string {
	if len(asset.Departments) > 0 {
		return asset.Departments
	}
	return b.cfg.DepartmentTasks
}

func (b *build) ensureTask(task trackingdb.TaskRow) error {
	found, err := b.tx.HasTask(b.projectID, task)
	if err != nil {
		return err
	}
	if found {
		b.result.Record(writer.KindTask, writer.Skipped)
		return nil
	}
	if err := b.tx.InsertTask(b.projectID, task); err != nil {
		return err
	}
	b.result.Record(writer.KindTask, writer.Created)
	return nil
}

func (b *build) ensureSequences(seqs []*project.Sequence, parent string) error {
	for i, seq := range seqs {
		want := trackingdb.SequenceRow{Code: seq.ID, Name: seq.Name, Parent: parent, Position: i}
		existing, found, err := b.tx.Sequence(b.projectID, seq.ID)
		if err != nil {
			return err
		}
		outcome, err := b.cfg.Policy.Decide(writer.KindSequence, seq.ID, found, found && existing == want)
		if err != nil {
			return err
		}
		if outcome != writer.Skipped {
			if err := b.tx.PutSequence(b.projectID, want); err != nil {
				return err
			}
		}
		b.result.Record(writer.KindSequence, outcome)
		if err := b.ensureSequences(seq.Sequences, seq.ID); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) ensureShot(ref project.ShotRef) error {
	shot := ref.Shot
	position := 0
	for i, s := range ref.Sequence.Shots {
		if s == shot {
			position = i
			break
		}
	}
	want := trackingdb.ShotRow{
		Code:     shot.ID,
		Sequence: ref.Sequence.ID,
		Name:     shot.Name,
		CutIn:    shot.Start,
		Duration: shot.Length,
		Location: shot.Location,
		Lighting: shot.Lighting,
		Position: position,
	}
	existing, found, err := b.tx.Shot(b.projectID, shot.ID)
	if err != nil {
		return err
	}
	outcome, err := b.cfg.Policy.Decide(writer.KindShot, shot.ID, found, found && existing == want)
	if err != nil {
		return err
	}
	if outcome != writer.Skipped {
		if err := b.tx.PutShot(b.projectID, want); err != nil {
			return err
		}
	}
	b.result.Record(writer.KindShot, outcome)

	for _, step := range b.cfg.ShotSteps {
		task := trackingdb.TaskRow{EntityType: trackingdb.EntityShot, EntityCode: shot.ID, Step: step, Content: step}
		if err := b.ensureTask(task); err != nil {
			return err
		}
	}

	for i, c := range shot.Characters {
		if err := b.ensureLink(trackingdb.LinkRow{Shot: shot.ID, Asset: c.AssetID, Role: trackingdb.RoleCharacter, Position: i}); err != nil {
			return err
		}
	}
	for _, track := range shot.TrackNames() {
		for i, id := range shot.Tracks[track] {
			if err := b.ensureLink(trackingdb.LinkRow{Shot: shot.ID, Asset: id, Role: track, Position: i}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *build) ensureLink(want trackingdb.LinkRow) error {
	existing, found, err := b.tx.Link(b.projectID, want.Shot, want.Asset, want.Role)
	if err != nil {
		return err
	}
	id := want.Shot + "/" + want.Asset
	outcome, err := b.cfg.Policy.Decide(writer.KindBinding, id, found, found && existing == want)
	if err != nil {
		return err
	}
	if outcome != writer.Skipped {
		if err := b.tx.PutLink(b.projectID, want); err != nil {
			return err
		}
	}
	b.result.Record(writer.KindBinding, outcome)
	return nil
}

func (b *build) ensureLocations() error {
	base := map[string]any{"project": b.project.Name, "tank": b.tank}
	with := func(extra map[string]any) map[string]any {
		vals := make(map[string]any, len(base)+len(extra))
		for k, v := range base {
			vals[k] = v
		}
		for k, v := range extra {
			vals[k] = v
		}
		return vals
	}

	for _, id := range b.project.AssetIDs() {
		asset := b.project.Assets[id]
		for _, dept := range sortedKeys(b.departments(asset)) {
			rendered, err := b.cfg.AssetLocation.Render(with(map[string]any{
				"asset_type": asset.Type, "asset": asset.ID, "step": dept,
			}))
			if err != nil {
				return err
			}
			if err := b.ensureLocation(trackingdb.EntityAsset, asset.ID, dept, rendered); err != nil {
				return err
			}
		}
	}

	err := b.project.Walk(func(seq *project.Sequence, _ int) error {
		rendered, err := b.cfg.SequenceLocation.Render(with(map[string]any{"sequence": seq.ID}))
		if err != nil {
			return err
		}
		return b.ensureLocation(trackingdb.EntitySequence, seq.ID, "", rendered)
	})
	if err != nil {
		return err
	}

	for _, ref := range b.project.Shots() {
		for _, step := range b.cfg.ShotSteps {
			rendered, err := b.cfg.ShotLocation.Render(with(map[string]any{
				"sequence": ref.Sequence.ID, "shot": ref.Shot.ID, "step": step,
			}))
			if err != nil {
				return err
			}
			if err := b.ensureLocation(trackingdb.EntityShot, ref.Shot.ID, step, rendered); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *build) ensureLocation(entityType, code, step, rendered string) error {
	want := trackingdb.LocationRow{
		EntityType: entityType,
		EntityCode: code,
		Step:       step,
		Path:       path.Join(b.tank, rendered),
	}
	existing, found, err := b.tx.Location(b.projectID, entityType, code, step)
	if err != nil {
		return err
	}
	outcome, err := b.cfg.Policy.Decide(writer.KindLocation, entityType+"/"+code+"/"+step, found, found && existing == want)
	if err != nil {
		return err
	}
	if outcome != writer.Skipped {
		if err := b.tx.PutLocation(b.projectID, want); err != nil {
			return err
		}
	}
	b.result.Record(writer.KindLocation, outcome)
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

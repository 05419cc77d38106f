package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"pmt/internal/logging"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/writer"
)

// BridgeFactory opens the bridge for a target project directory.
type BridgeFactory func(target string) (HostBridge, error)

// Writer builds level sequences and asset folders in an engine project.
type Writer struct {
	cfg       Config
	newBridge BridgeFactory
	locker    *writer.Locker
	logger    *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithBridge replaces the filesystem bridge, typically with an editor bridge
// or a test double.
func WithBridge(factory BridgeFactory) Option {
	return func(w *Writer) { w.newBridge = factory }
}

// WithLocker sets the per-identifier locker.
func WithLocker(l *writer.Locker) Option {
	return func(w *Writer) { w.locker = l }
}

// New returns an engine writer.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Writer {
	w := &Writer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "engine"),
		newBridge: func(target string) (HostBridge, error) {
			return NewFSBridge(target), nil
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements writer.Writer.
func (w *Writer) Name() string { return "engine" }

// Ping checks the target project named by the target argument.
func (w *Writer) Ping(ctx context.Context, args services.Args) error {
	bridge, _, err := w.open(args)
	if err != nil {
		return err
	}
	return bridge.Ping(ctx)
}

func (w *Writer) open(args services.Args) (HostBridge, string, error) {
	target, err := args.Required("engine writer", "target")
	if err != nil {
		return nil, "", services.Wrap(services.ErrTargetConfig, "engine", "open", "", err)
	}
	bridge, err := w.newBridge(target)
	if err != nil {
		return nil, "", services.Wrap(services.ErrTargetUnavailable, "engine", "open", target, err)
	}
	return bridge, target, nil
}

// run carries the state of one Write call.
type run struct {
	w       *Writer
	ctx     context.Context
	bridge  HostBridge
	target  string
	project *project.Project
	result  *writer.Result
	touched []string
}

// Write materializes p. Recognized arguments: target (project directory).
func (w *Writer) Write(ctx context.Context, p *project.Project, args services.Args) (*writer.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bridge, target, err := w.open(args)
	if err != nil {
		return nil, err
	}
	if err := bridge.Ping(ctx); err != nil {
		return nil, err
	}

	r := &run{
		w:       w,
		ctx:     ctx,
		bridge:  bridge,
		target:  target,
		project: p,
		result:  writer.NewResult(w.Name(), target),
	}
	if err := r.sequences(); err != nil {
		return nil, err
	}
	if err := r.assetFolders(); err != nil {
		return nil, err
	}
	if err := bridge.SyncBrowser(ctx, r.touched); err != nil {
		return nil, err
	}

	totals := r.result.Totals()
	w.logger.Info("engine project written",
		logging.String("target", target),
		logging.Int("created", totals.Created),
		logging.Int("updated", totals.Updated),
		logging.Int("skipped", totals.Skipped),
	)
	return r.result, nil
}

func (r *run) values(seqID, shotID string) map[string]any {
	return map[string]any{
		"project":   r.project.Name,
		"episode":   r.w.cfg.Episode,
		"sequence":  seqID,
		"shot":      shotID,
		"shot_type": RoleShot,
	}
}

// sequences creates one shot sequence per shot, its track subsequences, and
// finally the master sequence with the shots laid out back to back.
func (r *run) sequences() error {
	cfg := r.w.cfg
	var (
		sections []Section
		cursor   int
	)
	for _, ref := range r.project.Shots() {
		length := cfg.ShotLength
		if length <= 0 {
			length = ref.Shot.Length
		}
		shotSpec, err := r.shotSequence(ref, length)
		if err != nil {
			return err
		}
		sections = append(sections, Section{
			Shot:     ref.Shot.ID,
			Sequence: shotSpec.ObjectPath(),
			Start:    cursor,
			End:      cursor + length,
		})
		cursor += length
	}

	master := SequenceSpec{
		Dir:       cfg.SequenceDir,
		Name:      cfg.MasterSequence,
		Role:      RoleMaster,
		FrameRate: cfg.FrameRate,
		Start:     0,
		End:       cursor,
		Sections:  sections,
	}
	_, err := r.ensureSequence(writer.KindSequence, master)
	return err
}

func (r *run) shotSequence(ref project.ShotRef, length int) (SequenceSpec, error) {
	cfg := r.w.cfg
	vals := r.values(ref.Sequence.ID, ref.Shot.ID)
	dir, err := cfg.ShotSequencePath.Render(vals)
	if err != nil {
		return SequenceSpec{}, err
	}
	name, err := cfg.ShotSequenceName.Render(vals)
	if err != nil {
		return SequenceSpec{}, err
	}

	spec := SequenceSpec{
		Dir:       dir,
		Name:      name,
		Role:      RoleShot,
		FrameRate: cfg.FrameRate,
		Start:     0,
		End:       length,
		PreRoll:   cfg.PreRollFrames,
		Camera:    &Camera{Class: cfg.CameraClass, Name: "Camera_" + ref.Shot.ID},
	}
	for _, c := range ref.Shot.Characters {
		res, err := r.project.ResolveCharacter(c, cfg.PlaceholderAsset)
		if err != nil {
			r.result.Warn(fmt.Sprintf("shot %s: %v; binding skipped", ref.Shot.ID, err))
			continue
		}
		spec.Bindings = append(spec.Bindings, Binding{
			Asset:       res.AssetID,
			Reference:   res.Reference,
			Placeholder: res.Placeholder,
		})
	}

	for _, track := range cfg.SubsceneTracks {
		subVals := r.values(ref.Sequence.ID, ref.Shot.ID)
		subVals["department"] = track
		subDir, err := cfg.SubsequencePath.Render(subVals)
		if err != nil {
			return SequenceSpec{}, err
		}
		subName, err := cfg.SubsequenceName.Render(subVals)
		if err != nil {
			return SequenceSpec{}, err
		}
		sub := SequenceSpec{
			Dir:       subDir,
			Name:      subName,
			Role:      RoleSubsequence,
			FrameRate: cfg.FrameRate,
			Start:     0,
			End:       length,
			Assets:    r.trackAssets(ref.Shot, track),
		}
		if _, err := r.ensureSequence(writer.KindTrack, sub); err != nil {
			return SequenceSpec{}, err
		}
		spec.Subsequences = append(spec.Subsequences, sub.ObjectPath())
	}

	outcome, err := r.ensureSequence(writer.KindShot, spec)
	if err != nil {
		return SequenceSpec{}, err
	}
	for range spec.Bindings {
		r.result.Record(writer.KindBinding, outcome)
	}
	return spec, nil
}

func (r *run) trackAssets(shot *project.Shot, track string) []string {
	var refs []string
	for _, id := range shot.Tracks[track] {
		asset := r.project.Assets[id]
		switch {
		case asset == nil:
			continue
		case asset.Reference != "":
			refs = append(refs, asset.Reference)
		case asset.Placeholder != "":
			refs = append(refs, asset.Placeholder)
		default:
			refs = append(refs, asset.ID)
		}
	}
	return refs
}

// ensureSequence looks the sequence up by object path and creates, replaces,
// or leaves it according to the merge policy, holding the identifier lock.
func (r *run) ensureSequence(kind writer.Kind, spec SequenceSpec) (writer.Outcome, error) {
	objectPath := spec.ObjectPath()
	var outcome writer.Outcome
	err := r.w.locker.With(r.ctx, writer.LockKey("engine", r.target, objectPath), func() error {
		existing, found, err := r.bridge.LookupSequence(r.ctx, objectPath)
		if err != nil {
			return err
		}
		same := found && existing.Equal(spec)
		outcome, err = r.w.cfg.Policy.Decide(kind, objectPath, found, same)
		if err != nil {
			return err
		}
		if outcome == writer.Skipped {
			return nil
		}
		return r.bridge.CreateSequenceTrack(r.ctx, spec)
	})
	if err != nil {
		return "", err
	}
	r.result.Record(kind, outcome)
	r.touched = append(r.touched, objectPath)
	r.w.logger.Debug("sequence ensured",
		logging.String("path", objectPath),
		logging.String("kind", string(kind)),
		logging.String("outcome", string(outcome)),
	)
	return outcome, nil
}

// assetFolders creates one folder per asset and department, plus one
// subfolder per department task. Departments declared on the asset replace
// the configured mapping.
func (r *run) assetFolders() error {
	for _, id := range r.project.AssetIDs() {
		asset := r.project.Assets[id]
		tasks := r.w.cfg.DepartmentTasks
		if len(asset.Departments) > 0 {
			tasks = asset.Departments
		}
		departments := make([]string, 0, len(tasks))
		for dept := range tasks {
			departments = append(departments, dept)
		}
		sort.Strings(departments)

		for _, dept := range departments {
			folder, err := r.w.cfg.AssetPath.Render(map[string]any{
				"project":    r.project.Name,
				"episode":    r.w.cfg.Episode,
				"asset_type": asset.Type,
				"asset_name": asset.ID,
				"department": dept,
			})
			if err != nil {
				return err
			}
			folder = strings.TrimSuffix(folder, "/")
			if err := r.ensureFolder(folder); err != nil {
				return err
			}
			for _, task := range tasks[dept] {
				if err := r.ensureFolder(path.Join(folder, task)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *run) ensureFolder(folder string) error {
	var outcome writer.Outcome
	err := r.w.locker.With(r.ctx, writer.LockKey("engine", r.target, folder), func() error {
		found, err := r.bridge.LookupAssetFolder(r.ctx, folder)
		if err != nil {
			return err
		}
		// Folders carry no content, so an existing one always matches.
		outcome, err = r.w.cfg.Policy.Decide(writer.KindFolder, folder, found, found)
		if err != nil || outcome == writer.Skipped {
			return err
		}
		return r.bridge.AddAssetReference(r.ctx, folder)
	})
	if err != nil {
		return err
	}
	r.result.Record(writer.KindFolder, outcome)
	r.touched = append(r.touched, folder)
	return nil
}

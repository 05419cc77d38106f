package tracking

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"pmt/internal/config"
	"pmt/internal/logging"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/trackingdb"
)

// Reader rebuilds a project from the production tracking database.
type Reader struct {
	cfg    config.Tracking
	logger *slog.Logger
}

// New returns a tracking reader.
func New(cfg config.Tracking, logger *slog.Logger) *Reader {
	return &Reader{cfg: cfg, logger: logging.NewComponentLogger(logger, "tracking")}
}

// Name implements reader.Reader.
func (r *Reader) Name() string { return "tracking" }

// Read loads the project named by the project argument. The database
// argument overrides the configured path. The database is never created.
func (r *Reader) Read(ctx context.Context, args services.Args) (*project.Project, error) {
	code, err := args.Required("tracking reader", "project")
	if err != nil {
		return nil, err
	}
	dbPath := args.String("database", r.cfg.DatabasePath)
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrSourceNotFound, "tracking", "read", dbPath, err)
		}
		return nil, fmt.Errorf("stat tracking database %s: %w", dbPath, err)
	}

	store, err := trackingdb.Open(ctx, dbPath)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceParse, "tracking", "read", dbPath, err)
	}
	defer store.Close()

	var p *project.Project
	err = store.View(ctx, func(tx *trackingdb.Tx) error {
		var buildErr error
		p, buildErr = load(tx, code)
		return buildErr
	})
	if err != nil {
		return nil, err
	}
	p.Metadata = project.Metadata{
		Reader:      r.Name(),
		Source:      dbPath,
		GeneratedAt: time.Now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	stats := p.Stats()
	r.logger.Info("tracking project loaded",
		logging.String("database", dbPath),
		logging.String("project", code),
		logging.Int("sequences", stats.Sequences),
		logging.Int("shots", stats.Shots),
		logging.Int("assets", stats.Assets),
	)
	return p, nil
}

func load(tx *trackingdb.Tx, code string) (*project.Project, error) {
	row, found, err := tx.Project(code)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, services.Wrap(services.ErrSourceNotFound, "tracking", "read", fmt.Sprintf("project %q", code), nil)
	}
	p := project.New(row.Name)

	assets, err := tx.Assets(row.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		asset := p.EnsureAsset(a.Code, a.Name, a.Type)
		asset.Placeholder = a.Placeholder
		asset.Reference = a.Reference
		tasks, err := tx.Tasks(row.ID, trackingdb.EntityAsset, a.Code)
		if err != nil {
			return nil, err
		}
		asset.Departments = departments(tasks)
	}

	seqs, err := tx.Sequences(row.ID)
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*project.Sequence, len(seqs))
	for _, s := range seqs {
		nodes[s.Code] = &project.Sequence{ID: s.Code, Name: s.Name}
	}
	for _, s := range seqs {
		node := nodes[s.Code]
		if s.Parent == "" {
			p.Sequences = append(p.Sequences, node)
			continue
		}
		parent, ok := nodes[s.Parent]
		if !ok {
			return nil, services.Wrap(services.ErrSourceParse, "tracking", "read",
				fmt.Sprintf("sequence %q has unknown parent %q", s.Code, s.Parent), nil)
		}
		parent.Sequences = append(parent.Sequences, node)
	}

	for _, s := range seqs {
		shots, err := tx.Shots(row.ID, s.Code)
		if err != nil {
			return nil, err
		}
		seq := nodes[s.Code]
		for _, sh := range shots {
			shot := seq.AddShot(sh.Code, sh.CutIn, sh.Duration)
			shot.Name, shot.Location, shot.Lighting = sh.Name, sh.Location, sh.Lighting
			links, err := tx.Links(row.ID, sh.Code)
			if err != nil {
				return nil, err
			}
			for _, link := range links {
				if link.Role == trackingdb.RoleCharacter {
					shot.AddCharacter(link.Asset)
				} else {
					shot.AddTrackAsset(link.Role, link.Asset)
				}
			}
		}
	}
	return p, nil
}

// departments groups asset tasks by step. A step whose only task is named
// after the step maps to an empty task list.
func departments(tasks []trackingdb.TaskRow) map[string][]string {
	out := map[string][]string{}
	for _, t := range tasks {
		out[t.Step] = append(out[t.Step], t.Content)
	}
	for step, names := range out {
		if len(names) == 1 && names[0] == step {
			out[step] = []string{}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

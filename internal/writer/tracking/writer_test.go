package tracking_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pmt/internal/config"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/trackingdb"
	"pmt/internal/writer"
	"pmt/internal/writer/tracking"
)

func sampleProject() *project.Project {
	p := project.New("Heist")
	p.Metadata.Source = "heist.txt"
	seq := p.AddSequence("SQ0010", "")
	s1 := seq.AddShot("0010", 0, 48)
	s2 := seq.AddShot("0020", 48, 24)
	p.EnsureAsset("JOHN", "John", project.AssetCharacter)
	p.EnsureAsset("LAMP", "Lamp", project.AssetProp)
	s1.AddCharacter("JOHN")
	s2.AddTrackAsset("fx", "LAMP")
	return p
}

func loadConfig(t *testing.T, mutate func(*config.Tracking)) tracking.Config {
	t.Helper()
	cfg := config.Default().Tracking
	cfg.DatabasePath = filepath.Join(t.TempDir(), "tracking.db")
	if mutate != nil {
		mutate(&cfg)
	}
	resolved, err := tracking.LoadConfig(cfg)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return resolved
}

func newWriter(t *testing.T, cfg tracking.Config) *tracking.Writer {
	t.Helper()
	return tracking.New(cfg, nil, tracking.WithLocker(writer.NewLocker(t.TempDir(), time.Second)))
}

func view(t *testing.T, path string, fn func(*trackingdb.Tx) error) {
	t.Helper()
	store, err := trackingdb.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.View(context.Background(), fn); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	cfg := loadConfig(t, nil)
	w := newWriter(t, cfg)
	ctx := context.Background()

	first, err := w.Write(ctx, sampleProject(), nil)
	if err != nil {
		t.Fatalf("first Write: %v", err)
	}
	want := map[writer.Kind]writer.Counts{
		writer.KindProject:  {Created: 1},
		writer.KindAsset:    {Created: 2},
		writer.KindTask:     {Created: 14},
		writer.KindSequence: {Created: 1},
		writer.KindShot:     {Created: 2},
		writer.KindBinding:  {Created: 2},
		writer.KindLocation: {Created: 13},
	}
	if diff := cmp.Diff(want, first.Counts); diff != "" {
		t.Fatalf("first write counts (-want +got):\n%s", diff)
	}

	second, err := w.Write(ctx, sampleProject(), nil)
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if got := second.Totals(); got.Created != 0 || got.Updated != 0 || got.Skipped != first.Totals().Created {
		t.Fatalf("second write should skip everything, got %+v", got)
	}

	view(t, cfg.DatabasePath, func(tx *trackingdb.Tx) error {
		proj, found, err := tx.Project("Heist")
		if err != nil || !found {
			t.Fatalf("project lookup: found=%v err=%v", found, err)
		}
		if proj.TankName != "heist" || proj.Source != "heist.txt" {
			t.Fatalf("unexpected project row: %+v", proj)
		}
		for table, n := range map[string]int{"assets": 2, "tasks": 14, "shots": 2, "shot_assets": 2, "filesystem_locations": 13} {
			got, err := tx.Count(proj.ID, table)
			if err != nil {
				t.Fatalf("count %s: %v", table, err)
			}
			if got != n {
				t.Fatalf("%s: want %d rows, got %d", table, n, got)
			}
		}
		shot, _, err := tx.Shot(proj.ID, "0020")
		if err != nil {
			t.Fatalf("shot: %v", err)
		}
		wantShot := trackingdb.ShotRow{Code: "0020", Sequence: "SQ0010", CutIn: 48, Duration: 24, Position: 1}
		if diff := cmp.Diff(wantShot, shot); diff != "" {
			t.Fatalf("shot row (-want +got):\n%s", diff)
		}
		links, err := tx.Links(proj.ID, "0020")
		if err != nil {
			t.Fatalf("links: %v", err)
		}
		if diff := cmp.Diff([]trackingdb.LinkRow{{Shot: "0020", Asset: "LAMP", Role: "fx"}}, links); diff != "" {
			t.Fatalf("links (-want +got):\n%s", diff)
		}
		loc, found, err := tx.Location(proj.ID, trackingdb.EntityShot, "0010", "anim")
		if err != nil || !found {
			t.Fatalf("location lookup: found=%v err=%v", found, err)
		}
		if loc.Path != "heist/sequences/SQ0010/0010/anim" {
			t.Fatalf("unexpected shot location %q", loc.Path)
		}
		return nil
	})
}

func TestWriteConflictPolicies(t *testing.T) {
	cfg := loadConfig(t, nil)
	ctx := context.Background()
	if _, err := newWriter(t, cfg).Write(ctx, sampleProject(), nil); err != nil {
		t.Fatalf("seed Write: %v", err)
	}

	changed := func() *project.Project {
		p := sampleProject()
		p.Sequences[0].Shots[0].Length = 60
		return p
	}
	withPolicy := func(policy writer.MergePolicy) tracking.Config {
		c := cfg
		c.Policy = policy
		return c
	}

	_, err := newWriter(t, withPolicy(writer.MergeFail)).Write(ctx, changed(), nil)
	if !errors.Is(err, services.ErrTargetConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	view(t, cfg.DatabasePath, func(tx *trackingdb.Tx) error {
		proj, _, _ := tx.Project("Heist")
		shot, _, err := tx.Shot(proj.ID, "0010")
		if err != nil {
			t.Fatalf("shot: %v", err)
		}
		if shot.Duration != 48 {
			t.Fatalf("failed write must roll back, got duration %d", shot.Duration)
		}
		return nil
	})

	skipped, err := newWriter(t, withPolicy(writer.MergeSkip)).Write(ctx, changed(), nil)
	if err != nil {
		t.Fatalf("skip Write: %v", err)
	}
	if got := skipped.Totals(); got.Created != 0 || got.Updated != 0 {
		t.Fatalf("skip policy should not change anything, got %+v", got)
	}

	updated, err := newWriter(t, withPolicy(writer.MergeUpdate)).Write(ctx, changed(), nil)
	if err != nil {
		t.Fatalf("update Write: %v", err)
	}
	if got := updated.Get(writer.KindShot); got.Updated != 1 || got.Skipped != 1 {
		t.Fatalf("expected one shot updated, got %+v", got)
	}
}

func TestWriteProjectCollision(t *testing.T) {
	tests := []struct {
		name      string
		collision string
		check     func(t *testing.T, rows []trackingdb.ProjectRow)
	}{
		{
			name:      "rename",
			collision: tracking.CollisionRename,
			check: func(t *testing.T, rows []trackingdb.ProjectRow) {
				if rows[0].Code != "Heist" || rows[0].Source != "heist.txt" {
					t.Fatalf("original project changed: %+v", rows[0])
				}
				if !strings.HasPrefix(rows[1].Code, "Heist_") || rows[1].Source != "other.txt" {
					t.Fatalf("unexpected renamed project: %+v", rows[1])
				}
			},
		},
		{
			name:      "archive",
			collision: tracking.CollisionArchive,
			check: func(t *testing.T, rows []trackingdb.ProjectRow) {
				if rows[0].Code != "Heist" || rows[0].Archived || rows[0].Source != "other.txt" {
					t.Fatalf("unexpected fresh project: %+v", rows[0])
				}
				if !strings.HasPrefix(rows[1].Code, "Heist_archived_") || !rows[1].Archived {
					t.Fatalf("unexpected archived project: %+v", rows[1])
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := loadConfig(t, func(c *config.Tracking) { c.ProjectCollision = tc.collision })
			w := newWriter(t, cfg)
			ctx := context.Background()
			if _, err := w.Write(ctx, sampleProject(), nil); err != nil {
				t.Fatalf("seed Write: %v", err)
			}
			other := sampleProject()
			other.Metadata.Source = "other.txt"
			result, err := w.Write(ctx, other, nil)
			if err != nil {
				t.Fatalf("colliding Write: %v", err)
			}
			if len(result.Warnings) != 1 {
				t.Fatalf("expected one collision warning, got %v", result.Warnings)
			}
			if got := result.Get(writer.KindShot); got.Created != 2 {
				t.Fatalf("colliding write should create a fresh project, got %+v", got)
			}
			view(t, cfg.DatabasePath, func(tx *trackingdb.Tx) error {
				rows, err := tx.Projects()
				if err != nil {
					t.Fatalf("projects: %v", err)
				}
				if len(rows) != 2 {
					t.Fatalf("expected two projects, got %+v", rows)
				}
				tc.check(t, rows)
				return nil
			})
		})
	}
}

func TestWriteProjectCollisionWithoutStrategyUsesPolicy(t *testing.T) {
	cfg := loadConfig(t, nil)
	w := newWriter(t, cfg)
	ctx := context.Background()
	if _, err := w.Write(ctx, sampleProject(), nil); err != nil {
		t.Fatalf("seed Write: %v", err)
	}
	other := sampleProject()
	other.Metadata.Source = "other.txt"
	if _, err := w.Write(ctx, other, nil); !errors.Is(err, services.ErrTargetConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestWriteDatabaseArgumentAndCode(t *testing.T) {
	cfg := loadConfig(t, nil)
	alt := filepath.Join(t.TempDir(), "alt.db")
	args := services.Args{"database": alt, "code": "HST"}
	result, err := newWriter(t, cfg).Write(context.Background(), sampleProject(), args)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.Target != alt {
		t.Fatalf("expected target %q, got %q", alt, result.Target)
	}
	view(t, alt, func(tx *trackingdb.Tx) error {
		proj, found, err := tx.Project("HST")
		if err != nil || !found {
			t.Fatalf("project lookup: found=%v err=%v", found, err)
		}
		if proj.Name != "Heist" || proj.TankName != "hst" {
			t.Fatalf("unexpected project row: %+v", proj)
		}
		return nil
	})
	if _, err := os.Stat(cfg.DatabasePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("configured database should be untouched, stat err=%v", err)
	}
}

func TestConcurrentWritersShareOneDatabase(t *testing.T) {
	cfg := loadConfig(t, nil)
	const writers, rounds = 8, 5

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		created = map[writer.Kind]int{}
	)
	for g := 0; g < writers; g++ {
		// Separate lockers stand in for separate processes: only the
		// database serializes them.
		w := newWriter(t, cfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				result, err := w.Write(context.Background(), sampleProject(), nil)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					for _, kind := range result.Kinds() {
						created[kind] += result.Get(kind).Created
					}
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("%d of %d writes failed, first: %v", len(errs), writers*rounds, errs[0])
	}
	if created[writer.KindProject] != 1 || created[writer.KindShot] != 2 || created[writer.KindAsset] != 2 {
		t.Fatalf("entities created more than once: %+v", created)
	}
	view(t, cfg.DatabasePath, func(tx *trackingdb.Tx) error {
		projects, err := tx.Projects()
		if err != nil {
			return err
		}
		if len(projects) != 1 {
			t.Fatalf("expected one project row, got %d", len(projects))
		}
		return nil
	})
}

func TestWriteTargetUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg := loadConfig(t, func(c *config.Tracking) { c.DatabasePath = filepath.Join(blocker, "tracking.db") })
	w := newWriter(t, cfg)
	_, err := w.Write(context.Background(), sampleProject(), nil)
	if !errors.Is(err, services.ErrTargetUnavailable) {
		t.Fatalf("expected target unavailable, got %v", err)
	}
	if services.ExitCode(err) != services.ExitTargetError {
		t.Fatalf("expected target exit code, got %d", services.ExitCode(err))
	}
	if err := w.Ping(context.Background(), nil); !errors.Is(err, services.ErrTargetUnavailable) {
		t.Fatalf("expected ping to fail, got %v", err)
	}
}

func TestWriteRejectsInvalidProject(t *testing.T) {
	p := sampleProject()
	p.Sequences[0].Shots[1].ID = "0010"
	_, err := newWriter(t, loadConfig(t, nil)).Write(context.Background(), p, nil)
	if !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := config.Default().Tracking
	cfg.ShotLocation = "{sequence}/{take}"
	if _, err := tracking.LoadConfig(cfg); !errors.Is(err, services.ErrTargetConfig) {
		t.Fatalf("expected unknown token to fail, got %v", err)
	}

	cfg = config.Default().Tracking
	cfg.ProjectCollision = "replace"
	if _, err := tracking.LoadConfig(cfg); !errors.Is(err, services.ErrTargetConfig) {
		t.Fatalf("expected bad collision to fail, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "tracking.yaml")
	body := "project_collision: archive\nshot_steps: [comp]\nconflict_policy: skip\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	cfg = config.Default().Tracking
	cfg.ClientConfig = path
	resolved, err := tracking.LoadConfig(cfg)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if resolved.Collision != tracking.CollisionArchive || resolved.Policy != writer.MergeSkip {
		t.Fatalf("overrides not applied: %+v", resolved)
	}
	if diff := cmp.Diff([]string{"comp"}, resolved.ShotSteps); diff != "" {
		t.Fatalf("shot steps (-want +got):\n%s", diff)
	}
}

package engine_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pmt/internal/config"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/writer"
	"pmt/internal/writer/engine"
)

func sampleProject() *project.Project {
	p := project.New("Heist")
	seq := p.AddSequence("SQ0010", "")
	s1 := seq.AddShot("0010", 0, 48)
	s2 := seq.AddShot("0020", 48, 24)
	p.EnsureAsset("JOHN", "John", project.AssetCharacter)
	lamp := p.EnsureAsset("LAMP", "Lamp", project.AssetProp)
	lamp.Reference = "/Game/props/Lamp"
	s1.AddCharacter("JOHN")
	s2.AddTrackAsset("fx", "LAMP")
	return p
}

func loadConfig(t *testing.T, mutate func(*config.Engine)) engine.Config {
	t.Helper()
	cfg := config.Default().Engine
	if mutate != nil {
		mutate(&cfg)
	}
	resolved, err := engine.LoadConfig(cfg)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return resolved
}

func newWriter(t *testing.T, cfg engine.Config) *engine.Writer {
	t.Helper()
	return engine.New(cfg, nil, engine.WithLocker(writer.NewLocker(t.TempDir(), time.Second)))
}

func countFiles(t *testing.T, root, suffix string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, suffix) {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return n
}

func TestWriteIsIdempotent(t *testing.T) {
	target := t.TempDir()
	w := newWriter(t, loadConfig(t, nil))
	args := services.Args{"target": target}
	ctx := context.Background()

	first, err := w.Write(ctx, sampleProject(), args)
	if err != nil {
		t.Fatalf("first Write: %v", err)
	}
	want := map[writer.Kind]writer.Counts{
		writer.KindSequence: {Created: 1},
		writer.KindShot:     {Created: 2},
		writer.KindTrack:    {Created: 8},
		writer.KindBinding:  {Created: 1},
		writer.KindFolder:   {Created: 10},
	}
	if diff := cmp.Diff(want, first.Counts); diff != "" {
		t.Fatalf("first write counts (-want +got):\n%s", diff)
	}
	sequences := countFiles(t, target, ".sequence.json")
	folders := countFiles(t, target, ".keep")
	if sequences != 11 || folders != 10 {
		t.Fatalf("expected 11 sequences and 10 folders on disk, got %d and %d", sequences, folders)
	}

	second, err := w.Write(ctx, sampleProject(), args)
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if got := second.Totals(); got.Created != 0 || got.Updated != 0 || got.Skipped != first.Totals().Created {
		t.Fatalf("second write should skip everything, got %+v", got)
	}
	if countFiles(t, target, ".sequence.json") != sequences || countFiles(t, target, ".keep") != folders {
		t.Fatal("second write changed the number of entities")
	}
}

func TestWriteLaysOutMasterWithConfiguredShotLength(t *testing.T) {
	target := t.TempDir()
	ctx := context.Background()
	if _, err := newWriter(t, loadConfig(t, nil)).Write(ctx, sampleProject(), services.Args{"target": target}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	bridge := engine.NewFSBridge(target)
	master, found, err := bridge.LookupSequence(ctx, "/Game/shots/S1E1")
	if err != nil || !found {
		t.Fatalf("master lookup: found=%v err=%v", found, err)
	}
	wantSections := []engine.Section{
		{Shot: "0010", Sequence: "/Game/shots/0010/S1E1_0010", Start: 0, End: 30},
		{Shot: "0020", Sequence: "/Game/shots/0020/S1E1_0020", Start: 30, End: 60},
	}
	if diff := cmp.Diff(wantSections, master.Sections); diff != "" {
		t.Fatalf("sections (-want +got):\n%s", diff)
	}
	if master.End != 60 {
		t.Fatalf("expected master range to end at 60, got %d", master.End)
	}

	shot, found, err := bridge.LookupSequence(ctx, "/Game/shots/0010/S1E1_0010")
	if err != nil || !found {
		t.Fatalf("shot lookup: found=%v err=%v", found, err)
	}
	wantBinding := []engine.Binding{{Asset: "JOHN", Reference: "/PMT/Assets/Character.Character", Placeholder: true}}
	if diff := cmp.Diff(wantBinding, shot.Bindings); diff != "" {
		t.Fatalf("bindings (-want +got):\n%s", diff)
	}
	if shot.Camera == nil || shot.Camera.Class != "CineCameraActor" || shot.PreRoll != 24 {
		t.Fatalf("unexpected shot sequence %+v", shot)
	}
	if len(shot.Subsequences) != 4 || shot.Subsequences[0] != "/Game/shots/0010/anim/S1E1_0010_anim" {
		t.Fatalf("unexpected subsequences %v", shot.Subsequences)
	}

	fx, found, err := bridge.LookupSequence(ctx, "/Game/shots/0020/fx/S1E1_0020_fx")
	if err != nil || !found {
		t.Fatalf("fx lookup: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff([]string{"/Game/props/Lamp"}, fx.Assets); diff != "" {
		t.Fatalf("fx assets (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(target, "Content", "assets", "character", "JOHN", "surface", "texture", ".keep")); err != nil {
		t.Fatalf("expected task folder: %v", err)
	}
}

func TestWriteUsesShotLengthWhenUnset(t *testing.T) {
	target := t.TempDir()
	ctx := context.Background()
	cfg := loadConfig(t, func(e *config.Engine) { e.ShotLength = 0 })
	if _, err := newWriter(t, cfg).Write(ctx, sampleProject(), services.Args{"target": target}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	master, _, err := engine.NewFSBridge(target).LookupSequence(ctx, "/Game/shots/S1E1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if master.Sections[1].Start != 48 || master.End != 72 {
		t.Fatalf("expected shot lengths 48 and 24, got %+v", master.Sections)
	}
}

func TestWriteConflictPolicies(t *testing.T) {
	target := t.TempDir()
	ctx := context.Background()
	args := services.Args{"target": target}
	if _, err := newWriter(t, loadConfig(t, nil)).Write(ctx, sampleProject(), args); err != nil {
		t.Fatalf("seed Write: %v", err)
	}

	changed := func(policy string) engine.Config {
		return loadConfig(t, func(e *config.Engine) {
			e.ShotLength = 0
			e.ConflictPolicy = policy
		})
	}

	_, err := newWriter(t, changed("fail")).Write(ctx, sampleProject(), args)
	if !errors.Is(err, services.ErrTargetConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if services.ExitCode(err) != services.ExitTargetError {
		t.Fatalf("expected target exit code, got %d", services.ExitCode(err))
	}

	skipped, err := newWriter(t, changed("skip")).Write(ctx, sampleProject(), args)
	if err != nil {
		t.Fatalf("skip Write: %v", err)
	}
	if skipped.Totals().Created != 0 || skipped.Totals().Updated != 0 {
		t.Fatalf("skip policy should not change anything, got %+v", skipped.Totals())
	}

	updated, err := newWriter(t, changed("update")).Write(ctx, sampleProject(), args)
	if err != nil {
		t.Fatalf("update Write: %v", err)
	}
	if got := updated.Get(writer.KindShot); got.Updated != 2 {
		t.Fatalf("expected both shots updated, got %+v", got)
	}
	if got := updated.Get(writer.KindSequence); got.Updated != 1 {
		t.Fatalf("expected master updated, got %+v", got)
	}
	if got := updated.Get(writer.KindFolder); got.Skipped != 10 {
		t.Fatalf("expected folders untouched, got %+v", got)
	}
}

func TestWriteTargetUnavailable(t *testing.T) {
	w := newWriter(t, loadConfig(t, nil))
	_, err := w.Write(context.Background(), sampleProject(), services.Args{"target": filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, services.ErrTargetUnavailable) {
		t.Fatalf("expected target unavailable, got %v", err)
	}
	if err := w.Ping(context.Background(), services.Args{"target": t.TempDir()}); err != nil {
		t.Fatalf("Ping on writable dir: %v", err)
	}
}

func TestWriteRejectsInvalidProject(t *testing.T) {
	p := sampleProject()
	p.Sequences[0].Shots[0].Length = 0
	_, err := newWriter(t, loadConfig(t, nil)).Write(context.Background(), p, services.Args{"target": t.TempDir()})
	if !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestLoadConfigRejectsUnknownTemplateTokens(t *testing.T) {
	cfg := config.Default().Engine
	cfg.ShotSequenceName = "{shot}_{take}"
	if _, err := engine.LoadConfig(cfg); !errors.Is(err, services.ErrTargetConfig) {
		t.Fatalf("expected target config error, got %v", err)
	}
}

func TestLoadConfigAppliesClientOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	body := "master_sequence: EP2\nshot_length: 0\nsubscene_tracks: [anim]\nconflict_policy: update\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	cfg := config.Default().Engine
	cfg.ClientConfig = path
	resolved, err := engine.LoadConfig(cfg)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if resolved.MasterSequence != "EP2" || resolved.ShotLength != 0 || resolved.Policy != writer.MergeUpdate {
		t.Fatalf("overrides not applied: %+v", resolved)
	}
	if diff := cmp.Diff([]string{"anim"}, resolved.SubsceneTracks); diff != "" {
		t.Fatalf("tracks (-want +got):\n%s", diff)
	}
	if resolved.CameraClass != "CineCameraActor" {
		t.Fatalf("absent keys should keep defaults, got %q", resolved.CameraClass)
	}

	if err := os.WriteFile(path, []byte("mastr_sequence: typo\n"), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	if _, err := engine.LoadConfig(cfg); !errors.Is(err, services.ErrTargetConfig) {
		t.Fatalf("expected unknown key to fail, got %v", err)
	}
}

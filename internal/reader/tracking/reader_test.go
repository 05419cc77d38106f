package tracking_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"pmt/internal/config"
	"pmt/internal/project"
	"pmt/internal/reader/tracking"
	"pmt/internal/services"
	trackingwriter "pmt/internal/writer/tracking"
)

func sampleProject() *project.Project {
	p := project.New("Heist")
	seq := p.AddSequence("SQ0010", "Night")
	s1 := seq.AddShot("0010", 0, 48)
	s1.Location, s1.Lighting = "BANK", "NIGHT"
	s2 := seq.AddShot("0020", 48, 24)
	child := seq.AddChild("SQ0011", "")
	child.AddShot("0030", 72, 12)
	p.EnsureAsset("JOHN", "John", project.AssetCharacter).Placeholder = "/P/John"
	p.EnsureAsset("LAMP", "Lamp", project.AssetProp).Departments = map[string][]string{"model": {}}
	s1.AddCharacter("JOHN")
	s2.AddTrackAsset("fx", "LAMP")
	return p
}

func seed(t *testing.T) config.Tracking {
	t.Helper()
	cfg := config.Default().Tracking
	cfg.DatabasePath = filepath.Join(t.TempDir(), "tracking.db")
	resolved, err := trackingwriter.LoadConfig(cfg)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := trackingwriter.New(resolved, nil).Write(context.Background(), sampleProject(), nil); err != nil {
		t.Fatalf("seed Write: %v", err)
	}
	return cfg
}

func TestReadRebuildsProject(t *testing.T) {
	cfg := seed(t)
	got, err := tracking.New(cfg, nil).Read(context.Background(), services.Args{"project": "Heist"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := sampleProject()
	want.Assets["JOHN"].Departments = map[string][]string{
		"model":   {},
		"rig":     {},
		"surface": {"material", "texture"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(project.Project{}, "Metadata")); diff != "" {
		t.Fatalf("project (-want +got):\n%s", diff)
	}
	if got.Metadata.Reader != "tracking" || got.Metadata.Source != cfg.DatabasePath {
		t.Fatalf("unexpected metadata: %+v", got.Metadata)
	}
}

func TestReadDatabaseArgument(t *testing.T) {
	cfg := seed(t)
	r := tracking.New(config.Tracking{DatabasePath: filepath.Join(t.TempDir(), "none.db")}, nil)
	if _, err := r.Read(context.Background(), services.Args{"project": "Heist", "database": cfg.DatabasePath}); err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func TestReadErrors(t *testing.T) {
	cfg := seed(t)
	r := tracking.New(cfg, nil)
	ctx := context.Background()

	if _, err := r.Read(ctx, nil); err == nil {
		t.Fatal("expected missing project argument to fail")
	}
	_, err := r.Read(ctx, services.Args{"project": "Other"})
	if !errors.Is(err, services.ErrSourceNotFound) {
		t.Fatalf("expected unknown project to be not found, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "missing.db")
	_, err = r.Read(ctx, services.Args{"project": "Heist", "database": missing})
	if !errors.Is(err, services.ErrSourceNotFound) {
		t.Fatalf("expected missing database to be not found, got %v", err)
	}
	if services.ExitCode(err) != services.ExitSourceError {
		t.Fatalf("expected source exit code, got %d", services.ExitCode(err))
	}
}

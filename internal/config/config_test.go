package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"pmt/internal/config"
)

func clearOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvHostCommand, config.EnvProjectBase, config.EnvOutputDir, config.EnvTrackingDB} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)
	clearOverrides(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "pmt", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Tracking.DatabasePath != filepath.Join(tempHome, ".local", "share", "pmt", "tracking.db") {
		t.Fatalf("unexpected tracking database path: %q", cfg.Tracking.DatabasePath)
	}
	if cfg.Tracking.StorageRoot != filepath.Join(tempHome, ".local", "share", "pmt", "storage") {
		t.Fatalf("unexpected tracking storage root: %q", cfg.Tracking.StorageRoot)
	}
	if cfg.Engine.ConflictPolicy != "fail" || cfg.Tracking.ConflictPolicy != "fail" {
		t.Fatalf("expected fail-on-conflict defaults, got %q / %q", cfg.Engine.ConflictPolicy, cfg.Tracking.ConflictPolicy)
	}
	if cfg.Screenplay.Ambiguity != "warn" {
		t.Fatalf("expected warn-on-ambiguity default, got %q", cfg.Screenplay.Ambiguity)
	}
	if cfg.Engine.ShotLength != 30 {
		t.Fatalf("unexpected engine shot length: %d", cfg.Engine.ShotLength)
	}
	if got := cfg.Engine.DepartmentTasks["surface"]; len(got) != 2 || got[0] != "texture" {
		t.Fatalf("unexpected department tasks: %#v", cfg.Engine.DepartmentTasks)
	}
	if cfg.HostTimeout() != 30*time.Minute {
		t.Fatalf("unexpected host timeout: %s", cfg.HostTimeout())
	}
	if cfg.LockDir() != filepath.Join(cfg.Paths.DataDir, "locks") {
		t.Fatalf("unexpected lock dir: %q", cfg.LockDir())
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	clearOverrides(t)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
work_dir = "~/pmt/work"
output_dir = "~/pmt/out"

[logging]
format = "JSON"

[screenplay]
multiple_characters = "keep_all"
ambiguity = "fail"
sequence_id = "MAIN"

[engine]
shot_length = 48
subscene_tracks = [" anim ", "", "lighting"]

[tracking]
project_collision = "Rename"

[connector]
mode = "host"
host_command = "/usr/bin/true"
timeout_seconds = 5
project_file_ext = "uproject"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to exist at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "pmt", "out") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
	if cfg.Screenplay.MultipleCharacters != "keep_all" || cfg.Screenplay.Ambiguity != "fail" {
		t.Fatalf("unexpected screenplay options: %#v", cfg.Screenplay)
	}
	if cfg.Screenplay.ShotIDTemplate != "{count:03}0" {
		t.Fatalf("expected default shot template to survive partial config, got %q", cfg.Screenplay.ShotIDTemplate)
	}
	if strings.Join(cfg.Engine.SubsceneTracks, ",") != "anim,lighting" {
		t.Fatalf("unexpected subscene tracks: %#v", cfg.Engine.SubsceneTracks)
	}
	if cfg.Tracking.ProjectCollision != "rename" {
		t.Fatalf("unexpected project collision: %q", cfg.Tracking.ProjectCollision)
	}
	if cfg.Connector.ProjectFileExt != ".uproject" {
		t.Fatalf("expected dotted extension, got %q", cfg.Connector.ProjectFileExt)
	}
	if cfg.HostTimeout() != 5*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.HostTimeout())
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	engineRoot := filepath.Join(tempHome, "engine")
	if err := os.MkdirAll(engineRoot, 0o755); err != nil {
		t.Fatalf("mkdir engine root: %v", err)
	}
	t.Setenv(config.EnvHostCommand, engineRoot)
	t.Setenv(config.EnvProjectBase, filepath.Join(tempHome, "base"))
	t.Setenv(config.EnvOutputDir, filepath.Join(tempHome, "final"))

	cfg, _, _, err := config.Load(filepath.Join(tempHome, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !strings.HasPrefix(cfg.Connector.HostCommand, engineRoot+string(os.PathSeparator)) {
		t.Fatalf("expected host command resolved under engine root, got %q", cfg.Connector.HostCommand)
	}
	if cfg.Connector.TemplateProject != filepath.Join(tempHome, "base") {
		t.Fatalf("unexpected template project: %q", cfg.Connector.TemplateProject)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "final") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
}

func TestValidateRejectsUnknownPolicies(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"conflict", func(c *config.Config) { c.Engine.ConflictPolicy = "merge" }, "engine.conflict_policy"},
		{"ambiguity", func(c *config.Config) { c.Screenplay.Ambiguity = "guess" }, "screenplay.ambiguity"},
		{"collision", func(c *config.Config) { c.Tracking.ProjectCollision = "replace" }, "tracking.project_collision"},
		{"user name", func(c *config.Config) { c.Tracking.Users = map[string]string{"artist": "Alan"} }, "tracking.users.artist"},
		{"host mode without command", func(c *config.Config) { c.Connector.Mode = "host" }, "connector.host_command"},
		{"mode", func(c *config.Config) { c.Connector.Mode = "remote" }, "connector.mode"},
		{"shot template", func(c *config.Config) { c.Screenplay.ShotIDTemplate = "SHOT" }, "screenplay.shot_id_template"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Connector.Mode != "direct" {
		t.Fatalf("unexpected sample connector mode: %q", cfg.Connector.Mode)
	}
	if len(cfg.Engine.SubsceneTracks) != 4 {
		t.Fatalf("unexpected sample subscene tracks: %#v", cfg.Engine.SubsceneTracks)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[connector]") {
		t.Fatal("expected connector section in sample config")
	}
}

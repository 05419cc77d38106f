package tracking

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pmt/internal/config"
	"pmt/internal/naming"
	"pmt/internal/services"
	"pmt/internal/writer"
)

// Project collision strategies applied when a project with the same code but
// a different source already exists.
const (
	CollisionNone    = ""
	CollisionRename  = "rename"
	CollisionArchive = "archive"
)

// Config is the resolved tracking writer configuration.
type Config struct {
	DatabasePath     string
	Policy           writer.MergePolicy
	Collision        string
	AssetLocation    *naming.Template
	SequenceLocation *naming.Template
	ShotLocation     *naming.Template
	DepartmentTasks  map[string][]string
	ShotSteps        []string
	StorageRoot      string
	Users            map[string]string
}

type clientOverrides struct {
	DatabasePath     *string             `yaml:"database_path"`
	ConflictPolicy   *string             `yaml:"conflict_policy"`
	ProjectCollision *string             `yaml:"project_collision"`
	AssetLocation    *string             `yaml:"asset_location"`
	SequenceLocation *string             `yaml:"sequence_location"`
	ShotLocation     *string             `yaml:"shot_location"`
	DepartmentTasks  map[string][]string `yaml:"department_tasks"`
	ShotSteps        []string            `yaml:"shot_steps"`
	StorageRoot      *string             `yaml:"storage_root"`
	Users            map[string]string   `yaml:"users"`
}

// LoadConfig resolves cfg, applying its YAML client config when set.
func LoadConfig(cfg config.Tracking) (Config, error) {
	if cfg.ClientConfig != "" {
		data, err := os.ReadFile(cfg.ClientConfig)
		if err != nil {
			return Config{}, services.Wrap(services.ErrTargetConfig, "tracking", "client config", cfg.ClientConfig, err)
		}
		var o clientOverrides
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, services.Wrap(services.ErrTargetConfig, "tracking", "client config", cfg.ClientConfig, err)
		}
		override(&cfg.DatabasePath, o.DatabasePath)
		override(&cfg.ConflictPolicy, o.ConflictPolicy)
		override(&cfg.ProjectCollision, o.ProjectCollision)
		override(&cfg.AssetLocation, o.AssetLocation)
		override(&cfg.SequenceLocation, o.SequenceLocation)
		override(&cfg.ShotLocation, o.ShotLocation)
		if o.DepartmentTasks != nil {
			cfg.DepartmentTasks = o.DepartmentTasks
		}
		if o.ShotSteps != nil {
			cfg.ShotSteps = o.ShotSteps
		}
		override(&cfg.StorageRoot, o.StorageRoot)
		if o.Users != nil {
			cfg.Users = o.Users
		}
	}

	policy, err := writer.ParseMergePolicy(cfg.ConflictPolicy)
	if err != nil {
		return Config{}, err
	}
	switch cfg.ProjectCollision {
	case CollisionNone, CollisionRename, CollisionArchive:
	default:
		return Config{}, services.Wrap(services.ErrTargetConfig, "tracking", "config",
			"project_collision must be empty, rename, or archive", nil)
	}

	out := Config{
		DatabasePath:    cfg.DatabasePath,
		Policy:          policy,
		Collision:       cfg.ProjectCollision,
		DepartmentTasks: cfg.DepartmentTasks,
		ShotSteps:       append([]string(nil), cfg.ShotSteps...),
		StorageRoot:     cfg.StorageRoot,
		Users:           map[string]string{},
	}
	for role, name := range cfg.Users {
		if _, _, ok := strings.Cut(strings.TrimSpace(name), " "); !ok {
			return Config{}, services.Wrap(services.ErrTargetConfig, "tracking", "config",
				fmt.Sprintf("user %s: %q needs a first and last name", role, name), nil)
		}
		out.Users[role] = strings.TrimSpace(name)
	}
	templates := []struct {
		name    string
		raw     string
		dst     **naming.Template
		allowed []string
	}{
		{"asset_location", cfg.AssetLocation, &out.AssetLocation, []string{"project", "tank", "asset_type", "asset", "step"}},
		{"sequence_location", cfg.SequenceLocation, &out.SequenceLocation, []string{"project", "tank", "sequence"}},
		{"shot_location", cfg.ShotLocation, &out.ShotLocation, []string{"project", "tank", "sequence", "shot", "step"}},
	}
	for _, tc := range templates {
		tmpl, err := naming.Parse("tracking."+tc.name, tc.raw, services.ErrTargetConfig)
		if err != nil {
			return Config{}, err
		}
		if err := tmpl.Validate(tc.allowed...); err != nil {
			return Config{}, err
		}
		*tc.dst = tmpl
	}
	return out, nil
}

func override(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

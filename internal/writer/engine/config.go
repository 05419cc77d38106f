package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pmt/internal/config"
	"pmt/internal/naming"
	"pmt/internal/services"
	"pmt/internal/writer"
)

// Template tokens available to engine path and name templates.
var templateTokens = []string{
	"project", "episode", "sequence", "shot", "shot_type",
	"department", "asset_type", "asset_name",
}

// Config is the resolved engine writer configuration.
type Config struct {
	MasterSequence   string
	Episode          string
	SequenceDir      string
	ShotSequencePath *naming.Template
	ShotSequenceName *naming.Template
	SubsceneTracks   []string
	SubsequencePath  *naming.Template
	SubsequenceName  *naming.Template
	ShotLength       int
	FrameRate        int
	PreRollFrames    int
	AssetPath        *naming.Template
	DepartmentTasks  map[string][]string
	PlaceholderAsset string
	CameraClass      string
	Policy           writer.MergePolicy
}

// clientOverrides is the YAML client config. Absent keys keep the TOML value.
type clientOverrides struct {
	MasterSequence   *string             `yaml:"master_sequence"`
	Episode          *string             `yaml:"episode"`
	SequenceDir      *string             `yaml:"sequence_dir"`
	ShotSequencePath *string             `yaml:"shot_sequence_path"`
	ShotSequenceName *string             `yaml:"shot_sequence_name"`
	SubsceneTracks   []string            `yaml:"subscene_tracks"`
	SubsequencePath  *string             `yaml:"subsequence_path"`
	SubsequenceName  *string             `yaml:"subsequence_name"`
	ShotLength       *int                `yaml:"shot_length"`
	FrameRate        *int                `yaml:"frame_rate"`
	PreRollFrames    *int                `yaml:"pre_roll_frames"`
	AssetPath        *string             `yaml:"asset_path"`
	DepartmentTasks  map[string][]string `yaml:"department_tasks"`
	PlaceholderAsset *string             `yaml:"placeholder_asset"`
	CameraClass      *string             `yaml:"camera_class"`
	ConflictPolicy   *string             `yaml:"conflict_policy"`
}

// LoadConfig resolves cfg, applying the YAML client config when one is set, and
// validates every template. Problems report services.ErrTargetConfig.
func LoadConfig(cfg config.Engine) (Config, error) {
	if cfg.ClientConfig != "" {
		data, err := os.ReadFile(cfg.ClientConfig)
		if err != nil {
			return Config{}, services.Wrap(services.ErrTargetConfig, "engine", "client config", cfg.ClientConfig, err)
		}
		if err := applyOverrides(&cfg, data); err != nil {
			return Config{}, services.Wrap(services.ErrTargetConfig, "engine", "client config", cfg.ClientConfig, err)
		}
	}
	return resolve(cfg)
}

func applyOverrides(cfg *config.Engine, data []byte) error {
	var o clientOverrides
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	setString(&cfg.MasterSequence, o.MasterSequence)
	setString(&cfg.Episode, o.Episode)
	setString(&cfg.SequenceDir, o.SequenceDir)
	setString(&cfg.ShotSequencePath, o.ShotSequencePath)
	setString(&cfg.ShotSequenceName, o.ShotSequenceName)
	setString(&cfg.SubsequencePath, o.SubsequencePath)
	setString(&cfg.SubsequenceName, o.SubsequenceName)
	setString(&cfg.AssetPath, o.AssetPath)
	setString(&cfg.PlaceholderAsset, o.PlaceholderAsset)
	setString(&cfg.CameraClass, o.CameraClass)
	setString(&cfg.ConflictPolicy, o.ConflictPolicy)
	setInt(&cfg.ShotLength, o.ShotLength)
	setInt(&cfg.FrameRate, o.FrameRate)
	setInt(&cfg.PreRollFrames, o.PreRollFrames)
	if o.SubsceneTracks != nil {
		cfg.SubsceneTracks = o.SubsceneTracks
	}
	if o.DepartmentTasks != nil {
		cfg.DepartmentTasks = o.DepartmentTasks
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func resolve(cfg config.Engine) (Config, error) {
	policy, err := writer.ParseMergePolicy(cfg.ConflictPolicy)
	if err != nil {
		return Config{}, err
	}
	out := Config{
		MasterSequence:   strings.TrimSpace(cfg.MasterSequence),
		Episode:          cfg.Episode,
		SequenceDir:      cfg.SequenceDir,
		SubsceneTracks:   append([]string(nil), cfg.SubsceneTracks...),
		ShotLength:       cfg.ShotLength,
		FrameRate:        cfg.FrameRate,
		PreRollFrames:    cfg.PreRollFrames,
		DepartmentTasks:  cfg.DepartmentTasks,
		PlaceholderAsset: cfg.PlaceholderAsset,
		CameraClass:      cfg.CameraClass,
		Policy:           policy,
	}
	switch {
	case out.MasterSequence == "":
		return Config{}, configError("master_sequence is empty")
	case out.ShotLength < 0:
		return Config{}, configError(fmt.Sprintf("shot_length must be >= 0, got %d", out.ShotLength))
	case out.FrameRate <= 0:
		return Config{}, configError(fmt.Sprintf("frame_rate must be positive, got %d", out.FrameRate))
	case out.PreRollFrames < 0:
		return Config{}, configError(fmt.Sprintf("pre_roll_frames must be >= 0, got %d", out.PreRollFrames))
	}
	for _, track := range out.SubsceneTracks {
		if strings.TrimSpace(track) == "" {
			return Config{}, configError("subscene_tracks contains an empty name")
		}
	}

	templates := []struct {
		name string
		raw  string
		dst  **naming.Template
	}{
		{"shot_sequence_path", cfg.ShotSequencePath, &out.ShotSequencePath},
		{"shot_sequence_name", cfg.ShotSequenceName, &out.ShotSequenceName},
		{"subsequence_path", cfg.SubsequencePath, &out.SubsequencePath},
		{"subsequence_name", cfg.SubsequenceName, &out.SubsequenceName},
		{"asset_path", cfg.AssetPath, &out.AssetPath},
	}
	for _, tc := range templates {
		tmpl, err := naming.Parse("engine."+tc.name, tc.raw, services.ErrTargetConfig)
		if err != nil {
			return Config{}, err
		}
		if err := tmpl.Validate(templateTokens...); err != nil {
			return Config{}, err
		}
		*tc.dst = tmpl
	}
	return out, nil
}

// Departments returns department names sorted.
func (c Config) Departments() []string {
	names := make([]string, 0, len(c.DepartmentTasks))
	for name := range c.DepartmentTasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func configError(msg string) error {
	return services.Wrap(services.ErrTargetConfig, "engine", "config", msg, nil)
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Screenplay contains options for the screenplay reader.
type Screenplay struct {
	SequenceID     string `toml:"sequence_id"`
	ShotIDTemplate string `toml:"shot_id_template"`
	InitialNumber  int    `toml:"initial_number"`
	ShotLength     int    `toml:"shot_length"`
	// MultipleCharacters selects how "A & B" cues are handled: keep_first or keep_all.
	MultipleCharacters  string `toml:"multiple_characters"`
	KeepUndefinedAssets bool   `toml:"keep_undefined_assets"`
	// Ambiguity is warn or fail. Applies to inferred scene numbering.
	Ambiguity          string `toml:"ambiguity"`
	CharacterNameWords int    `toml:"character_name_words"`
	// Rules selects the tokenizer rule set: default or blank_line_not_delimiter.
	Rules string `toml:"rules"`
}

// Engine contains options for the 3D engine project writer. Any field can be
// overridden by the YAML client config referenced by ClientConfig.
type Engine struct {
	ClientConfig     string              `toml:"client_config"`
	MasterSequence   string              `toml:"master_sequence"`
	Episode          string              `toml:"episode"`
	SequenceDir      string              `toml:"sequence_dir"`
	ShotSequencePath string              `toml:"shot_sequence_path"`
	ShotSequenceName string              `toml:"shot_sequence_name"`
	SubsceneTracks   []string            `toml:"subscene_tracks"`
	SubsequencePath  string              `toml:"subsequence_path"`
	SubsequenceName  string              `toml:"subsequence_name"`
	ShotLength       int                 `toml:"shot_length"`
	FrameRate        int                 `toml:"frame_rate"`
	PreRollFrames    int                 `toml:"pre_roll_frames"`
	AssetPath        string              `toml:"asset_path"`
	DepartmentTasks  map[string][]string `toml:"department_tasks"`
	PlaceholderAsset string              `toml:"placeholder_asset"`
	CameraClass      string              `toml:"camera_class"`
	ConflictPolicy   string              `toml:"conflict_policy"`
}

// Tracking contains options for the production tracking database writer and reader.
type Tracking struct {
	DatabasePath     string              `toml:"database_path"`
	ClientConfig     string              `toml:"client_config"`
	ConflictPolicy   string              `toml:"conflict_policy"`
	ProjectCollision string              `toml:"project_collision"`
	AssetLocation    string              `toml:"asset_location"`
	SequenceLocation string              `toml:"sequence_location"`
	ShotLocation     string              `toml:"shot_location"`
	DepartmentTasks  map[string][]string `toml:"department_tasks"`
	ShotSteps        []string            `toml:"shot_steps"`
	// StorageRoot holds published files under <root>/<tank name>.
	StorageRoot string `toml:"storage_root"`
	// Users maps a role (supervisor, artist) to a "First Last" user name.
	Users map[string]string `toml:"users"`
}

// Connector contains options for translation orchestration.
type Connector struct {
	// Mode is direct (reader and writer share this process) or host.
	Mode               string   `toml:"mode"`
	HostCommand        string   `toml:"host_command"`
	HostArgs           []string `toml:"host_args"`
	TimeoutSeconds     int      `toml:"timeout_seconds"`
	TemplateProject    string   `toml:"template_project"`
	ProjectFileExt     string   `toml:"project_file_ext"`
	KeepIntermediate   bool     `toml:"keep_intermediate"`
	LockTimeoutSeconds int      `toml:"lock_timeout_seconds"`
}

// Config encapsulates all configuration values for PMT.
//
// Configuration sections by subsystem:
//   - Paths: working, output, data, and log directories
//   - Logging: log format and level
//   - Screenplay: screenplay reader parsing and numbering options
//   - Engine: 3D engine project writer naming and layout
//   - Tracking: production tracking database writer options
//   - Connector: translation mode, host process, and timeouts
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Screenplay Screenplay `toml:"screenplay"`
	Engine     Engine     `toml:"engine"`
	Tracking   Tracking   `toml:"tracking"`
	Connector  Connector  `toml:"connector"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pmt/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pmt.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working, data, and log directories.
// OutputDir is left alone because finalization refuses to reuse existing outputs
// and creates parents on demand.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.DataDir, c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockDir is where per-identifier writer locks are created.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// HistoryPath is the SQLite database recording translation runs.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// HostTimeout returns the connector host timeout. Zero disables it.
func (c *Config) HostTimeout() time.Duration {
	if c.Connector.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Connector.TimeoutSeconds) * time.Second
}

// LockTimeout bounds how long a writer waits for an identifier lock.
func (c *Config) LockTimeout() time.Duration {
	if c.Connector.LockTimeoutSeconds <= 0 {
		return defaultLockTimeoutSeconds * time.Second
	}
	return time.Duration(c.Connector.LockTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

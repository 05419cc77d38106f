package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables recognised as overrides for connector locations.
const (
	EnvHostCommand     = "PMT_ENGINE_ROOT"
	EnvProjectBase     = "PMT_PROJECT_BASE"
	EnvOutputDir       = "PMT_OUTPUT_PROJECT_PATH"
	EnvTrackingDB      = "PMT_TRACKING_DB"
	hostBinaryRelative = "Binaries/Linux/EditorCmd"
)

func (c *Config) normalize() error {
	c.applyEnvironment()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeScreenplay()
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	if err := c.normalizeTracking(); err != nil {
		return err
	}
	return c.normalizeConnector()
}

func (c *Config) applyEnvironment() {
	if value, ok := os.LookupEnv(EnvHostCommand); ok && strings.TrimSpace(value) != "" {
		c.Connector.HostCommand = resolveHostCommand(strings.TrimSpace(value))
	}
	if value, ok := os.LookupEnv(EnvProjectBase); ok && strings.TrimSpace(value) != "" {
		c.Connector.TemplateProject = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(EnvOutputDir); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(EnvTrackingDB); ok && strings.TrimSpace(value) != "" {
		c.Tracking.DatabasePath = strings.TrimSpace(value)
	}
}

// resolveHostCommand accepts either an executable or an engine install root.
func resolveHostCommand(value string) string {
	info, err := os.Stat(value)
	if err != nil || !info.IsDir() {
		return value
	}
	return filepath.Join(value, filepath.FromSlash(hostBinaryRelative))
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeScreenplay() {
	sp := &c.Screenplay
	sp.SequenceID = strings.TrimSpace(sp.SequenceID)
	if sp.SequenceID == "" {
		sp.SequenceID = defaultSequenceID
	}
	sp.ShotIDTemplate = strings.TrimSpace(sp.ShotIDTemplate)
	if sp.ShotIDTemplate == "" {
		sp.ShotIDTemplate = defaultShotIDTemplate
	}
	sp.MultipleCharacters = strings.ToLower(strings.TrimSpace(sp.MultipleCharacters))
	if sp.MultipleCharacters == "" {
		sp.MultipleCharacters = defaultMultipleCharacters
	}
	sp.Ambiguity = strings.ToLower(strings.TrimSpace(sp.Ambiguity))
	if sp.Ambiguity == "" {
		sp.Ambiguity = defaultAmbiguity
	}
	if sp.CharacterNameWords == 0 {
		sp.CharacterNameWords = defaultCharacterNameWords
	}
	sp.Rules = strings.ToLower(strings.TrimSpace(sp.Rules))
	if sp.Rules == "" {
		sp.Rules = defaultScreenplayRules
	}
}

func (c *Config) normalizeEngine() error {
	e := &c.Engine
	e.ConflictPolicy = strings.ToLower(strings.TrimSpace(e.ConflictPolicy))
	if e.ConflictPolicy == "" {
		e.ConflictPolicy = defaultConflictPolicy
	}
	e.SubsceneTracks = trimList(e.SubsceneTracks)
	if e.DepartmentTasks == nil {
		e.DepartmentTasks = defaultDepartmentTasks()
	}
	if strings.TrimSpace(e.ClientConfig) != "" {
		var err error
		if e.ClientConfig, err = expandPath(strings.TrimSpace(e.ClientConfig)); err != nil {
			return fmt.Errorf("engine.client_config: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTracking() error {
	t := &c.Tracking
	var err error
	if strings.TrimSpace(t.DatabasePath) == "" {
		t.DatabasePath = filepath.Join(c.Paths.DataDir, "tracking.db")
	}
	if t.DatabasePath, err = expandPath(strings.TrimSpace(t.DatabasePath)); err != nil {
		return fmt.Errorf("tracking.database_path: %w", err)
	}
	if strings.TrimSpace(t.ClientConfig) != "" {
		if t.ClientConfig, err = expandPath(strings.TrimSpace(t.ClientConfig)); err != nil {
			return fmt.Errorf("tracking.client_config: %w", err)
		}
	}
	t.ConflictPolicy = strings.ToLower(strings.TrimSpace(t.ConflictPolicy))
	if t.ConflictPolicy == "" {
		t.ConflictPolicy = defaultConflictPolicy
	}
	t.ProjectCollision = strings.ToLower(strings.TrimSpace(t.ProjectCollision))
	if t.DepartmentTasks == nil {
		t.DepartmentTasks = defaultDepartmentTasks()
	}
	t.ShotSteps = trimList(t.ShotSteps)
	if strings.TrimSpace(t.StorageRoot) == "" {
		t.StorageRoot = filepath.Join(c.Paths.DataDir, "storage")
	}
	if t.StorageRoot, err = expandPath(strings.TrimSpace(t.StorageRoot)); err != nil {
		return fmt.Errorf("tracking.storage_root: %w", err)
	}
	for role, name := range t.Users {
		t.Users[role] = strings.Join(strings.Fields(name), " ")
	}
	return nil
}

func (c *Config) normalizeConnector() error {
	cn := &c.Connector
	cn.Mode = strings.ToLower(strings.TrimSpace(cn.Mode))
	if cn.Mode == "" {
		cn.Mode = defaultConnectorMode
	}
	cn.HostCommand = strings.TrimSpace(cn.HostCommand)
	if len(cn.HostArgs) == 0 {
		cn.HostArgs = append([]string(nil), defaultHostArgs...)
	}
	if strings.TrimSpace(cn.TemplateProject) != "" {
		var err error
		if cn.TemplateProject, err = expandPath(strings.TrimSpace(cn.TemplateProject)); err != nil {
			return fmt.Errorf("connector.template_project: %w", err)
		}
	}
	cn.ProjectFileExt = strings.TrimSpace(cn.ProjectFileExt)
	if cn.ProjectFileExt != "" && !strings.HasPrefix(cn.ProjectFileExt, ".") {
		cn.ProjectFileExt = "." + cn.ProjectFileExt
	}
	return nil
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateScreenplay(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateConnector(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateScreenplay() error {
	sp := c.Screenplay
	if sp.InitialNumber < 0 {
		return errors.New("screenplay.initial_number must be >= 0")
	}
	if sp.ShotLength <= 0 {
		return errors.New("screenplay.shot_length must be positive")
	}
	if !strings.Contains(sp.ShotIDTemplate, "{count") {
		return fmt.Errorf("screenplay.shot_id_template %q must contain a {count} token", sp.ShotIDTemplate)
	}
	switch sp.MultipleCharacters {
	case "keep_first", "keep_all":
	default:
		return fmt.Errorf("screenplay.multiple_characters: unsupported value %q (want keep_first or keep_all)", sp.MultipleCharacters)
	}
	if err := validateAmbiguity(sp.Ambiguity); err != nil {
		return fmt.Errorf("screenplay.ambiguity: %w", err)
	}
	if sp.CharacterNameWords < 1 {
		return errors.New("screenplay.character_name_words must be positive")
	}
	switch sp.Rules {
	case "default", "blank_line_not_delimiter":
	default:
		return fmt.Errorf("screenplay.rules: unsupported value %q (want default or blank_line_not_delimiter)", sp.Rules)
	}
	return nil
}

func (c *Config) validateEngine() error {
	e := c.Engine
	if e.ShotLength < 0 {
		return errors.New("engine.shot_length must be >= 0")
	}
	if e.FrameRate <= 0 {
		return errors.New("engine.frame_rate must be positive")
	}
	if e.PreRollFrames < 0 {
		return errors.New("engine.pre_roll_frames must be >= 0")
	}
	if err := validateConflictPolicy(e.ConflictPolicy); err != nil {
		return fmt.Errorf("engine.conflict_policy: %w", err)
	}
	return nil
}

func (c *Config) validateTracking() error {
	t := c.Tracking
	if err := validateConflictPolicy(t.ConflictPolicy); err != nil {
		return fmt.Errorf("tracking.conflict_policy: %w", err)
	}
	switch t.ProjectCollision {
	case "", "rename", "archive":
	default:
		return fmt.Errorf("tracking.project_collision: unsupported value %q (want rename or archive)", t.ProjectCollision)
	}
	for role, name := range t.Users {
		if !strings.Contains(name, " ") {
			return fmt.Errorf("tracking.users.%s: %q needs a first and last name", role, name)
		}
	}
	return nil
}

func (c *Config) validateConnector() error {
	cn := c.Connector
	switch cn.Mode {
	case "direct":
	case "host":
		if cn.HostCommand == "" {
			return fmt.Errorf("connector.host_command is required in host mode (set it or export %s)", EnvHostCommand)
		}
	default:
		return fmt.Errorf("connector.mode: unsupported value %q (want direct or host)", cn.Mode)
	}
	if cn.TimeoutSeconds < 0 {
		return errors.New("connector.timeout_seconds must be >= 0")
	}
	if cn.LockTimeoutSeconds < 0 {
		return errors.New("connector.lock_timeout_seconds must be >= 0")
	}
	return nil
}

func validateConflictPolicy(value string) error {
	switch value {
	case "fail", "skip", "update":
		return nil
	default:
		return fmt.Errorf("unsupported value %q (want fail, skip, or update)", value)
	}
}

func validateAmbiguity(value string) error {
	switch value {
	case "warn", "fail":
		return nil
	default:
		return fmt.Errorf("unsupported value %q (want warn or fail)", value)
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"pmt/internal/config"
)

// ConfigOption adjusts a generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns the default config with every path under a fresh temp
// directory, then applies opts.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		WorkDir:   filepath.Join(base, "work"),
		OutputDir: filepath.Join(base, "output"),
		DataDir:   filepath.Join(base, "data"),
		LogDir:    filepath.Join(base, "logs"),
	}
	cfg.Tracking.DatabasePath = filepath.Join(base, "data", "tracking.db")
	cfg.Connector.LockTimeoutSeconds = 5
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithHostMode switches the connector to host mode running command.
func WithHostMode(command string, args ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Connector.Mode = "host"
		cfg.Connector.HostCommand = command
		if len(args) > 0 {
			cfg.Connector.HostArgs = args
		}
	}
}

// BaseDir is the temp directory holding the paths of a NewConfig config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}

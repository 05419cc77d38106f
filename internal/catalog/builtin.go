package catalog

import (
	"log/slog"

	"pmt/internal/config"
	"pmt/internal/reader"
	"pmt/internal/reader/screenplay"
	trackingreader "pmt/internal/reader/tracking"
	"pmt/internal/writer"
	"pmt/internal/writer/engine"
	"pmt/internal/writer/tracking"
)

// Readers returns the built-in readers.
func Readers() *Registry[reader.Reader] {
	r := NewRegistry[reader.Reader]("reader")
	r.mustRegister(Entry[reader.Reader]{
		Name:        "screenplay",
		Description: "plain-text screenplay (input=<file>)",
		New: func(cfg *config.Config, logger *slog.Logger) (reader.Reader, error) {
			return screenplay.New(cfg.Screenplay, logger), nil
		},
	})
	r.mustRegister(Entry[reader.Reader]{
		Name:        "tracking",
		Description: "production tracking database (project=<code>)",
		New: func(cfg *config.Config, logger *slog.Logger) (reader.Reader, error) {
			return trackingreader.New(cfg.Tracking, logger), nil
		},
	})
	r.mustRegister(Entry[reader.Reader]{
		Name:        "project",
		Description: "serialized project document (input=<file>)",
		New: func(_ *config.Config, logger *slog.Logger) (reader.Reader, error) {
			return reader.NewFileReader(logger), nil
		},
	})
	return r
}

// Writers returns the built-in writers. Each writer locks identifiers under
// the configured lock directory.
func Writers() *Registry[writer.Writer] {
	r := NewRegistry[writer.Writer]("writer")
	r.mustRegister(Entry[writer.Writer]{
		Name:        "engine",
		Description: "3D engine project (target=<project dir>)",
		New: func(cfg *config.Config, logger *slog.Logger) (writer.Writer, error) {
			resolved, err := engine.LoadConfig(cfg.Engine)
			if err != nil {
				return nil, err
			}
			return engine.New(resolved, logger, engine.WithLocker(Locker(cfg))), nil
		},
	})
	r.mustRegister(Entry[writer.Writer]{
		Name:        "tracking",
		Description: "production tracking database (database=<file>, code=<project code>, review=<file.yaml>)",
		New: func(cfg *config.Config, logger *slog.Logger) (writer.Writer, error) {
			resolved, err := tracking.LoadConfig(cfg.Tracking)
			if err != nil {
				return nil, err
			}
			return tracking.New(resolved, logger, tracking.WithLocker(Locker(cfg))), nil
		},
	})
	return r
}

// Locker returns the identifier locker configured by cfg.
func Locker(cfg *config.Config) *writer.Locker {
	return writer.NewLocker(cfg.LockDir(), cfg.LockTimeout())
}

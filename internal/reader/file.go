package reader

import (
	"context"
	"log/slog"

	"pmt/internal/logging"
	"pmt/internal/project"
	"pmt/internal/services"
)

// FileReader loads a serialized project document. It backs `pmt write` and the
// host bridge.
type FileReader struct {
	logger *slog.Logger
}

// NewFileReader returns a FileReader. A nil logger discards output.
func NewFileReader(logger *slog.Logger) *FileReader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileReader{logger: logger}
}

// Name implements Reader.
func (r *FileReader) Name() string { return "project" }

// Read loads the document named by the input argument.
func (r *FileReader) Read(ctx context.Context, args services.Args) (*project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := args.Required("project reader", "input")
	if err != nil {
		return nil, err
	}
	p, err := project.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("project document loaded",
		logging.String("path", path),
		logging.Int("shots", p.Stats().Shots),
	)
	return p, nil
}

package reader

import (
	"context"

	"pmt/internal/project"
	"pmt/internal/services"
)

// Reader produces a Project from a source. Implementations record recoverable
// ambiguities as project warnings and return typed errors otherwise.
type Reader interface {
	Name() string
	Read(ctx context.Context, args services.Args) (*project.Project, error)
}

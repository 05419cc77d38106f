package writer

import (
	"context"

	"pmt/internal/project"
	"pmt/internal/services"
)

// Writer materializes a Project in a target system. Implementations must not
// mutate the project and must look up existing entities by identifier before
// creating them.
type Writer interface {
	Name() string
	Write(ctx context.Context, p *project.Project, args services.Args) (*Result, error)
}

// Pinger is implemented by writers that can check their target before a
// translation starts.
type Pinger interface {
	Ping(ctx context.Context, args services.Args) error
}

package connector

import (
	"fmt"

	"pmt/internal/services"
)

// StageError is the first fatal error of a translation and the stage it
// happened in.
type StageError struct {
	Stage     State
	Kind      services.Kind
	Workspace string
	Err       error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("translation failed at %s stage (%s): %v", e.Stage.Label(), e.Kind, e.Err)
	if e.Workspace != "" {
		msg += "; workspace preserved at " + e.Workspace
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

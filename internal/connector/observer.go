package connector

import (
	"context"

	"pmt/internal/history"
)

// Observer is notified of every state change of a run.
type Observer interface {
	OnTransition(runID string, from, to State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(runID string, from, to State)

// OnTransition implements Observer.
func (f ObserverFunc) OnTransition(runID string, from, to State) { f(runID, from, to) }

// Recorder persists runs. *history.Store implements it.
type Recorder interface {
	Begin(ctx context.Context, run history.Run) error
	Transition(ctx context.Context, id, state string) error
	Finish(ctx context.Context, id string, c history.Completion) error
}

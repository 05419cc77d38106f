package connector

import "fmt"

// State is a translation stage.
type State string

const (
	StateIdle                State = "Idle"
	StatePreparingWorkspace  State = "PreparingWorkspace"
	StateRunningReader       State = "RunningReader"
	StateSerializing         State = "Serializing"
	StateLaunchingTargetHost State = "LaunchingTargetHost"
	StateRunningWriter       State = "RunningWriter"
	StateFinalizing          State = "Finalizing"
	StateDone                State = "Done"
	StateFailed              State = "Failed"
)

var edges = map[State][]State{
	StateIdle:                {StatePreparingWorkspace},
	StatePreparingWorkspace:  {StateRunningReader},
	StateRunningReader:       {StateSerializing, StateRunningWriter},
	StateSerializing:         {StateLaunchingTargetHost, StateRunningWriter},
	StateLaunchingTargetHost: {StateRunningWriter},
	StateRunningWriter:       {StateFinalizing},
	StateFinalizing:          {StateDone},
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Label is the short stage name shown to operators.
func (s State) Label() string {
	switch s {
	case StateRunningReader:
		return "reader"
	case StateSerializing:
		return "serialize"
	case StateLaunchingTargetHost:
		return "host-launch"
	case StateRunningWriter:
		return "writer"
	case StateFinalizing:
		return "finalize"
	case StatePreparingWorkspace:
		return "workspace"
	default:
		return string(s)
	}
}

// Transition validates a move from one state to another. Failed is reachable
// from every non-terminal state.
func Transition(from, to State) error {
	if from.IsTerminal() {
		return fmt.Errorf("invalid transition %s -> %s: %s is terminal", from, to, from)
	}
	if to == StateFailed {
		return nil
	}
	for _, next := range edges[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", from, to)
}

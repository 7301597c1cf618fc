package domain

import "fmt"

// State is the lifecycle position of a source.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateError    State = "error"
)

// Active reports whether a worker may exist in this state.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning || s == StatePaused
}

// ParseState maps a persisted value back to a State. Empty means stopped.
func ParseState(s string) (State, error) {
	switch State(s) {
	case "":
		return StateStopped, nil
	case StateStopped, StateStarting, StateRunning, StatePaused, StateError:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown state %q", s)
	}
}

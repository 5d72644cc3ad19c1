package pipeline

import "fmt"

// State is a step of the turn state machine
type State int

const (
	StateValidating State = iota
	StateTranscoding
	StateResolving
	StateTranscribing
	StateGenerating
	StateSynthesizing
	StatePersisting
	StateCleaning
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateValidating:   "validating",
	StateTranscoding:  "transcoding",
	StateResolving:    "resolving",
	StateTranscribing: "transcribing",
	StateGenerating:   "generating",
	StateSynthesizing: "synthesizing",
	StatePersisting:   "persisting",
	StateCleaning:     "cleaning",
	StateDone:         "done",
	StateFailed:       "failed",
}

// String returns the lowercase state name
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StageError records the state a turn failed in. The wrapped error carries
// the apperr classification.
type StageError struct {
	RequestID string
	State     State
	Err       error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("turn %s failed while %s: %v", e.RequestID, e.State, e.Err)
}

// Unwrap returns the classified cause
func (e *StageError) Unwrap() error {
	return e.Err
}

package feature

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of the feature set.
type State int

const (
	// StateInactive - no bundle is held.
	StateInactive State = iota

	// StateActive - a bundle is held with every handle acquired.
	StateActive
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Lifecycle errors.
var (
	// ErrAlreadyActive is returned by Activate while a bundle is active or
	// being built. The existing bundle is left untouched.
	ErrAlreadyActive = errors.New("feature set is already active")
)

// ActivationError reports the step at which activation failed. Every
// handle acquired before the failure has been released.
type ActivationError struct {
	Step string
	Err  error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activate %s: %v", e.Step, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

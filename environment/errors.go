package environment

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidState is matched by every *StateError.
	ErrInvalidState = errors.New("invalid session state")
)

// StateError reports an operation attempted from a state that does not
// permit it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not permitted in state %s", e.Op, e.State)
}

// Is reports whether target is ErrInvalidState.
func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

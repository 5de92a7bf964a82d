package index

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of an index.
type State uint32

const (
	// StateBuilding means the index is being populated and cannot be queried.
	StateBuilding State = iota
	// StateReady means the index can be queried.
	StateReady
	// StateDropped means the index was removed and cannot be queried.
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateDropped:
		return "dropped"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

var (
	// ErrIndexState is matched by every *StateError via errors.Is.
	ErrIndexState = errors.New("index not queryable in current state")

	// ErrDuplicateIndex is returned when registering an index under a taken name.
	ErrDuplicateIndex = errors.New("index name already registered")

	// ErrUnsupportedPredicate is returned by Retrieve for a predicate the
	// index does not support.
	ErrUnsupportedPredicate = errors.New("index does not support predicate")

	// ErrReadOnly is returned when mutating an index that cannot change.
	ErrReadOnly = errors.New("index is read-only")
)

// StateError reports an index queried while not ready.
type StateError struct {
	Index string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("index %q is %s", e.Index, e.State)
}

// Is makes errors.Is(err, ErrIndexState) true for any StateError.
func (e *StateError) Is(target error) bool { return target == ErrIndexState }

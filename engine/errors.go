package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedQuery is returned when a query cannot be answered under
	// the requested options, e.g. no index supports a leaf in strict mode.
	ErrUnsupportedQuery = errors.New("unsupported query")
)

// UnsupportedQueryError reports the query node that could not be answered.
type UnsupportedQueryError struct {
	Query  string
	Reason string
}

func (e *UnsupportedQueryError) Error() string {
	return fmt.Sprintf("unsupported query %s: %s", e.Query, e.Reason)
}

// Is reports whether target is ErrUnsupportedQuery.
func (e *UnsupportedQueryError) Is(target error) bool { return target == ErrUnsupportedQuery }

package cqgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/engine"
	"github.com/hupe1980/cqgo/index"
)

var (
	// ErrUnsupportedQuery is returned when no index can answer a leaf and
	// scanning is disallowed, or a forced index cannot answer its leaf.
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrIndexState is returned when a query reaches an index that is still
	// building or was dropped.
	ErrIndexState = errors.New("index not ready")

	// ErrAttributeAccess is returned when an attribute accessor fails.
	ErrAttributeAccess = errors.New("attribute access failed")

	// ErrDuplicateIndex is returned by AddIndex for a taken index name.
	ErrDuplicateIndex = errors.New("duplicate index")

	// ErrIndexNotFound is returned by DropIndex for an unknown index name.
	ErrIndexNotFound = errors.New("index not found")

	// ErrReadOnly is returned when mutating a collection that has a
	// read-only index attached.
	ErrReadOnly = errors.New("collection is read-only")

	// ErrClosed is returned by every operation on a closed collection.
	ErrClosed = errors.New("collection is closed")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, engine.ErrUnsupportedQuery):
		return fmt.Errorf("%w: %w", ErrUnsupportedQuery, err)
	case errors.Is(err, index.ErrIndexState):
		return fmt.Errorf("%w: %w", ErrIndexState, err)
	case errors.Is(err, attribute.ErrAccess):
		return fmt.Errorf("%w: %w", ErrAttributeAccess, err)
	case errors.Is(err, index.ErrDuplicateIndex):
		return fmt.Errorf("%w: %w", ErrDuplicateIndex, err)
	case errors.Is(err, index.ErrReadOnly):
		return fmt.Errorf("%w: %w", ErrReadOnly, err)
	}

	return err
}

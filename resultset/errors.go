package resultset

import (
	"errors"
	"strings"
)

// ReleaseError reports failures while closing result sets or the cursors
// behind them. It never replaces a primary error; see AttachRelease.
type ReleaseError struct {
	Errs []error
}

func (e *ReleaseError) Error() string {
	if len(e.Errs) == 1 {
		return "resultset: release failed: " + e.Errs[0].Error()
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "resultset: release failed: [" + strings.Join(msgs, "; ") + "]"
}

func (e *ReleaseError) Unwrap() []error { return e.Errs }

// AttachRelease combines a primary error with an error returned by Close.
//
// The result keeps the primary error's message and identity; release is still
// reachable through errors.Is and errors.As. If either is nil the other is
// returned unchanged.
func AttachRelease(primary, release error) error {
	switch {
	case release == nil:
		return primary
	case primary == nil:
		return release
	}
	return &attachedError{primary: primary, release: release}
}

type attachedError struct {
	primary error
	release error
}

func (e *attachedError) Error() string { return e.primary.Error() }

func (e *attachedError) Unwrap() []error { return []error{e.primary, e.release} }

// Released returns the release error attached to err, if any.
func Released(err error) (*ReleaseError, bool) {
	var re *ReleaseError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

package attribute

import (
	"errors"
	"fmt"
)

// ErrAccess is matched by every *AccessError via errors.Is.
var ErrAccess = errors.New("attribute access failed")

// AccessError reports that an accessor failed while extracting a value.
//
// The original underlying error can be accessed via errors.Unwrap.
type AccessError struct {
	Attribute ID
	cause     error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("attribute %s: %v", e.Attribute, e.cause)
}

func (e *AccessError) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrAccess) true for any AccessError.
func (e *AccessError) Is(target error) bool { return target == ErrAccess }

package query

import (
	"github.com/hupe1980/cqgo/attribute"
)

// Order compares two objects by an attribute.
type Order[O any] interface {
	// Compare orders a before b (negative), after b (positive) or as a tie (zero).
	Compare(a, b O) (int, error)

	String() string
}

type attributeOrder[O, A any] struct {
	attr       attribute.Attribute[O, A]
	descending bool
}

// Ascending orders objects by attr, smallest first.
//
// Multi-valued attributes are ordered by their first value. Objects without
// a value sort after all others in both directions.
func Ascending[O, A any](attr attribute.Attribute[O, A]) Order[O] {
	return &attributeOrder[O, A]{attr: attr}
}

// Descending orders objects by attr, largest first.
func Descending[O, A any](attr attribute.Attribute[O, A]) Order[O] {
	return &attributeOrder[O, A]{attr: attr, descending: true}
}

func (ao *attributeOrder[O, A]) Compare(a, b O) (int, error) {
	va, okA, err := ao.key(a)
	if err != nil {
		return 0, err
	}
	vb, okB, err := ao.key(b)
	if err != nil {
		return 0, err
	}
	switch {
	case !okA && !okB:
		return 0, nil
	case !okA:
		return 1, nil
	case !okB:
		return -1, nil
	}
	c := ao.attr.Compare(va, vb)
	if ao.descending {
		c = -c
	}
	return c, nil
}

func (ao *attributeOrder[O, A]) key(o O) (A, bool, error) {
	var zero A
	vs, err := ao.attr.Values(o)
	if err != nil {
		return zero, false, err
	}
	if len(vs) == 0 {
		return zero, false, nil
	}
	return vs[0], true, nil
}

func (ao *attributeOrder[O, A]) String() string {
	if ao.descending {
		return "descending(" + ao.attr.ID().String() + ")"
	}
	return "ascending(" + ao.attr.ID().String() + ")"
}

// Package query provides the predicate model evaluated by the engine.
//
// A query is an immutable tree. Leaves are predicates bound to one attribute
// (Equal, GreaterThan, LessThan, Between, In, Has); inner nodes combine
// children with And, Or and Not.
//
// Example:
//
//	q := query.And[*Car](
//	    query.GreaterThan(price, 5, false),
//	    query.LessThan(price, 15, false),
//	    query.Or[*Car](
//	        query.Equal(color, "red"),
//	        query.In(color, "blue", "green"),
//	    ),
//	)
//
// # Equality
//
// Every node implements structural Equal and Hash. Two nodes are equal when
// they are the same kind, reference the same attribute and carry the same
// operands and inclusivity flags. The hash is computed once at construction,
// so semantically identical queries can be used interchangeably as cache keys.
//
// # Evaluation
//
// Matches evaluates a query directly against one object. This is the scan
// path used when no index can answer a predicate. For multi-valued attributes
// a comparison predicate matches when any extracted value satisfies it.
package query

import (
	"fmt"

	"github.com/hupe1980/cqgo/attribute"
)

// Kind identifies the variant of a query node.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindEqual asserts attribute == value.
	KindEqual
	// KindGreaterThan asserts attribute > value (or >= when inclusive).
	KindGreaterThan
	// KindLessThan asserts attribute < value (or <= when inclusive).
	KindLessThan
	// KindBetween asserts lower < attribute < upper with per-bound inclusivity.
	KindBetween
	// KindIn asserts attribute is one of a set of values.
	KindIn
	// KindHas asserts the attribute yields at least one value.
	KindHas
	// KindAnd is the conjunction of its children.
	KindAnd
	// KindOr is the disjunction of its children.
	KindOr
	// KindNot is the negation of its child.
	KindNot
	// KindAll matches every object.
	KindAll
	// KindNone matches no object.
	KindNone
)

var kindNames = [...]string{
	KindInvalid:     "invalid",
	KindEqual:       "equal",
	KindGreaterThan: "greaterThan",
	KindLessThan:    "lessThan",
	KindBetween:     "between",
	KindIn:          "in",
	KindHas:         "has",
	KindAnd:         "and",
	KindOr:          "or",
	KindNot:         "not",
	KindAll:         "all",
	KindNone:        "none",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsLeaf reports whether the kind is an attribute predicate.
func (k Kind) IsLeaf() bool {
	return k >= KindEqual && k <= KindHas
}

// Query is a node of a query tree over objects of type O.
type Query[O any] interface {
	// Kind returns the variant of the node.
	Kind() Kind

	// Matches evaluates the node directly against a single object.
	Matches(o O, opts *Options[O]) (bool, error)

	// Hash returns the structural hash computed at construction.
	Hash() uint64

	// Equal reports structural equality with another node.
	Equal(other Query[O]) bool

	// String returns a human-readable diagnostic form.
	String() string
}

// Leaf is a query node bound to exactly one attribute.
type Leaf[O any] interface {
	Query[O]

	// AttributeID returns the identity of the bound attribute.
	AttributeID() attribute.ID
}

package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/cqgo/attribute"
)

// Predicate is a leaf query bound to one attribute.
//
// All comparison variants share one representation: an optional lower bound,
// an optional upper bound (each with its own inclusivity flag) and, for
// Equal and In, the operand values. Equal(v) is described as the closed range
// [v, v], so range-capable indexes can treat every comparison uniformly.
//
// A Predicate is immutable once constructed.
type Predicate[O, A any] struct {
	kind   Kind
	attr   attribute.Attribute[O, A]
	values []A

	lower, upper                   A
	hasLower, hasUpper             bool
	lowerInclusive, upperInclusive bool

	hash uint64
}

// Equal asserts that the attribute equals value.
func Equal[O, A any](attr attribute.Attribute[O, A], value A) *Predicate[O, A] {
	return newPredicate(&Predicate[O, A]{
		kind:           KindEqual,
		attr:           attr,
		values:         []A{value},
		lower:          value,
		upper:          value,
		hasLower:       true,
		hasUpper:       true,
		lowerInclusive: true,
		upperInclusive: true,
	})
}

// GreaterThan asserts that the attribute is greater than value
// (greater than or equal when inclusive is true).
func GreaterThan[O, A any](attr attribute.Attribute[O, A], value A, inclusive bool) *Predicate[O, A] {
	return newPredicate(&Predicate[O, A]{
		kind:           KindGreaterThan,
		attr:           attr,
		lower:          value,
		hasLower:       true,
		lowerInclusive: inclusive,
	})
}

// LessThan asserts that the attribute is less than value
// (less than or equal when inclusive is true).
func LessThan[O, A any](attr attribute.Attribute[O, A], value A, inclusive bool) *Predicate[O, A] {
	return newPredicate(&Predicate[O, A]{
		kind:           KindLessThan,
		attr:           attr,
		upper:          value,
		hasUpper:       true,
		upperInclusive: inclusive,
	})
}

// Between asserts that the attribute lies between lower and upper.
//
// lower > upper is not rejected; such a range matches nothing.
func Between[O, A any](attr attribute.Attribute[O, A], lower A, lowerInclusive bool, upper A, upperInclusive bool) *Predicate[O, A] {
	return newPredicate(&Predicate[O, A]{
		kind:           KindBetween,
		attr:           attr,
		lower:          lower,
		upper:          upper,
		hasLower:       true,
		hasUpper:       true,
		lowerInclusive: lowerInclusive,
		upperInclusive: upperInclusive,
	})
}

// In asserts that the attribute equals one of values.
//
// The values form a set: duplicates are dropped and the order in which they
// are given does not affect equality or hashing.
func In[O, A any](attr attribute.Attribute[O, A], values ...A) *Predicate[O, A] {
	set := slices.Clone(values)
	slices.SortFunc(set, attr.Compare)
	set = slices.CompactFunc(set, func(a, b A) bool { return attr.Compare(a, b) == 0 })
	return newPredicate(&Predicate[O, A]{
		kind:   KindIn,
		attr:   attr,
		values: set,
	})
}

// Has asserts that the attribute yields at least one value.
func Has[O, A any](attr attribute.Attribute[O, A]) *Predicate[O, A] {
	return newPredicate(&Predicate[O, A]{
		kind: KindHas,
		attr: attr,
	})
}

// IsNull asserts that the attribute yields no value. It is Not(Has(attr)).
func IsNull[O, A any](attr attribute.Attribute[O, A]) Query[O] {
	return Not[O](Has(attr))
}

func newPredicate[O, A any](p *Predicate[O, A]) *Predicate[O, A] {
	p.hash = p.calcHash()
	return p
}

func (p *Predicate[O, A]) calcHash() uint64 {
	h := newHasher(p.kind)
	h.attribute(p.attr.ID())
	h.uint64(uint64(len(p.values)))
	for _, v := range p.values {
		h.uint64(hashValue(v))
	}
	h.bool(p.hasLower)
	if p.hasLower {
		h.uint64(hashValue(p.lower))
		h.bool(p.lowerInclusive)
	}
	h.bool(p.hasUpper)
	if p.hasUpper {
		h.uint64(hashValue(p.upper))
		h.bool(p.upperInclusive)
	}
	return h.sum()
}

// Kind returns the predicate variant.
func (p *Predicate[O, A]) Kind() Kind { return p.kind }

// Attribute returns the bound attribute.
func (p *Predicate[O, A]) Attribute() attribute.Attribute[O, A] { return p.attr }

// AttributeID returns the identity of the bound attribute.
func (p *Predicate[O, A]) AttributeID() attribute.ID { return p.attr.ID() }

// Values returns the operands of Equal and In (sorted for In).
// The returned slice must not be modified.
func (p *Predicate[O, A]) Values() []A { return p.values }

// Lower returns the lower bound, its inclusivity, and whether one is set.
func (p *Predicate[O, A]) Lower() (value A, inclusive bool, ok bool) {
	return p.lower, p.lowerInclusive, p.hasLower
}

// Upper returns the upper bound, its inclusivity, and whether one is set.
func (p *Predicate[O, A]) Upper() (value A, inclusive bool, ok bool) {
	return p.upper, p.upperInclusive, p.hasUpper
}

// IsEmptyRange reports whether the bounds admit no value (lower > upper, or
// lower == upper with an exclusive side).
func (p *Predicate[O, A]) IsEmptyRange() bool {
	if !p.hasLower || !p.hasUpper {
		return false
	}
	c := p.attr.Compare(p.lower, p.upper)
	return c > 0 || (c == 0 && !(p.lowerInclusive && p.upperInclusive))
}

// Hash returns the structural hash computed at construction.
func (p *Predicate[O, A]) Hash() uint64 { return p.hash }

// Equal reports structural equality.
func (p *Predicate[O, A]) Equal(other Query[O]) bool {
	o, ok := other.(*Predicate[O, A])
	if !ok || o == nil {
		return false
	}
	if p == o {
		return true
	}
	if p.hash != o.hash || p.kind != o.kind || p.attr.ID() != o.attr.ID() {
		return false
	}
	if p.hasLower != o.hasLower || p.hasUpper != o.hasUpper {
		return false
	}
	if p.hasLower && (p.lowerInclusive != o.lowerInclusive || p.attr.Compare(p.lower, o.lower) != 0) {
		return false
	}
	if p.hasUpper && (p.upperInclusive != o.upperInclusive || p.attr.Compare(p.upper, o.upper) != 0) {
		return false
	}
	return slices.EqualFunc(p.values, o.values, func(a, b A) bool { return p.attr.Compare(a, b) == 0 })
}

// Matches evaluates the predicate against one object. For multi-valued
// attributes it matches when any value matches.
func (p *Predicate[O, A]) Matches(o O, _ *Options[O]) (bool, error) {
	if s, ok := p.attr.(attribute.Simple[O, A]); ok {
		v, err := s.Value(o)
		if err != nil {
			return false, err
		}
		return p.MatchesValue(v), nil
	}
	vs, err := p.attr.Values(o)
	if err != nil {
		return false, err
	}
	return p.MatchesAny(vs), nil
}

// MatchesAny reports whether any of vs satisfies the predicate.
func (p *Predicate[O, A]) MatchesAny(vs []A) bool {
	for _, v := range vs {
		if p.MatchesValue(v) {
			return true
		}
	}
	return false
}

// MatchesValue reports whether a single attribute value satisfies the predicate.
func (p *Predicate[O, A]) MatchesValue(v A) bool {
	switch p.kind {
	case KindHas:
		return true
	case KindIn:
		_, found := slices.BinarySearchFunc(p.values, v, p.attr.Compare)
		return found
	default:
		return p.withinBounds(v)
	}
}

func (p *Predicate[O, A]) withinBounds(v A) bool {
	if p.hasLower && !accepts(p.attr.Compare(v, p.lower), +1, p.lowerInclusive) {
		return false
	}
	if p.hasUpper && !accepts(p.attr.Compare(v, p.upper), -1, p.upperInclusive) {
		return false
	}
	return true
}

// accepts reports whether c, the result of comparing a value with a bound,
// puts the value on the admitted side. side is +1 for a lower bound (value
// must be above it) and -1 for an upper bound.
func accepts(c, side int, inclusive bool) bool {
	switch {
	case c == 0:
		return inclusive
	case c < 0:
		return side < 0
	default:
		return side > 0
	}
}

// String returns a diagnostic form such as "between(Car.price, 10, true, 15, false)".
func (p *Predicate[O, A]) String() string {
	id := p.attr.ID()
	switch p.kind {
	case KindEqual:
		return fmt.Sprintf("equal(%s, %v)", id, p.values[0])
	case KindGreaterThan:
		return fmt.Sprintf("greaterThan(%s, %v, inclusive=%t)", id, p.lower, p.lowerInclusive)
	case KindLessThan:
		return fmt.Sprintf("lessThan(%s, %v, inclusive=%t)", id, p.upper, p.upperInclusive)
	case KindBetween:
		return fmt.Sprintf("between(%s, %v, %t, %v, %t)", id, p.lower, p.lowerInclusive, p.upper, p.upperInclusive)
	case KindIn:
		parts := make([]string, len(p.values))
		for i, v := range p.values {
			parts[i] = fmt.Sprint(v)
		}
		return fmt.Sprintf("in(%s, [%s])", id, strings.Join(parts, ", "))
	case KindHas:
		return fmt.Sprintf("has(%s)", id)
	default:
		return fmt.Sprintf("%s(%s)", p.kind, id)
	}
}

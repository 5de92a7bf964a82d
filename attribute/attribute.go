// Package attribute defines typed accessors that extract values from objects.
//
// An attribute is identified by the declaring object type and its name. It is
// stateless: the only thing it does is read one (simple) or many (multi-valued)
// values of type A out of an object of type O. Every query leaf references an
// attribute, and every index is built over exactly one attribute.
//
// Example:
//
//	type Car struct {
//	    Price    int
//	    Features []string
//	}
//
//	price := attribute.New("price", func(c *Car) int { return c.Price })
//	features := attribute.NewMulti("features", func(c *Car) []string { return c.Features })
package attribute

import (
	"cmp"
	"reflect"
)

// ID identifies an attribute: (declaring object type, attribute name).
type ID struct {
	ObjectType string
	Name       string
}

// String returns "ObjectType.Name".
func (id ID) String() string {
	return id.ObjectType + "." + id.Name
}

// Attribute extracts zero or more values of type A from an object of type O.
//
// Implementations must be pure from the engine's perspective: the same object
// must always yield the same values while it is stored in a collection.
type Attribute[O, A any] interface {
	// ID returns the identity of the attribute.
	ID() ID

	// Values returns every value of the attribute for the object.
	// Accessor failures are reported as *AccessError.
	Values(o O) ([]A, error)

	// Compare defines the total ordering of attribute values.
	// It returns a negative number when a < b, zero when a == b and a
	// positive number when a > b.
	Compare(a, b A) int

	// IsSimple reports whether the attribute yields exactly one value per object.
	IsSimple() bool
}

// Simple is an attribute that yields exactly one value per object.
type Simple[O, A any] interface {
	Attribute[O, A]

	// Value returns the single value of the attribute for the object.
	Value(o O) (A, error)
}

// Keyer is implemented by attributes that know whether Compare agrees with
// Go ==. Hash-based indexes answer Equal and In only on keyed attributes.
type Keyer interface {
	// Keyed reports whether Compare(a, b) == 0 exactly when a == b, so values
	// can key a Go map.
	Keyed() bool
}

// Keyed reports whether attr implements Keyer and is keyed.
func Keyed[O, A any](attr Attribute[O, A]) bool {
	k, ok := attr.(Keyer)
	return ok && k.Keyed()
}

// keyedType reports whether cmp.Compare agrees with == on A. It does not for
// floats, where cmp.Compare treats NaN as equal to itself.
func keyedType[A cmp.Ordered]() bool {
	switch reflect.TypeFor[A]().Kind() {
	case reflect.Float32, reflect.Float64:
		return false
	default:
		return true
	}
}

// TypeName returns the name used as ObjectType for attributes declared on O.
func TypeName[O any]() string {
	t := reflect.TypeFor[O]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

type simpleAttribute[O, A any] struct {
	id      ID
	fn      func(O) (A, error)
	compare func(a, b A) int
	keyed   bool
}

// New returns a simple attribute for an ordered value type. It is keyed
// unless A is a floating-point type.
func New[O any, A cmp.Ordered](name string, fn func(O) A) Simple[O, A] {
	return &simpleAttribute[O, A]{
		id:      ID{ObjectType: TypeName[O](), Name: name},
		fn:      func(o O) (A, error) { return fn(o), nil },
		compare: cmp.Compare[A],
		keyed:   keyedType[A](),
	}
}

// NewFunc returns a simple attribute with a fallible accessor and an explicit ordering.
//
// Query predicates hash their operands by value: strings, numbers and bools
// directly, other types by their %v rendering. Values compare reports equal
// should hash alike (for a case-folding compare, pass normalized operands),
// otherwise equal predicates are treated as distinct and miss the plan
// cache. The attribute is not keyed, so hash and bitmap indexes only answer
// Has on it.
func NewFunc[O, A any](id ID, fn func(O) (A, error), compare func(a, b A) int) Simple[O, A] {
	return &simpleAttribute[O, A]{id: id, fn: fn, compare: compare}
}

func (a *simpleAttribute[O, A]) ID() ID { return a.id }

func (a *simpleAttribute[O, A]) Keyed() bool { return a.keyed }

func (a *simpleAttribute[O, A]) IsSimple() bool { return true }

func (a *simpleAttribute[O, A]) Compare(x, y A) int { return a.compare(x, y) }

func (a *simpleAttribute[O, A]) Value(o O) (A, error) {
	v, err := a.fn(o)
	if err != nil {
		var zero A
		return zero, &AccessError{Attribute: a.id, cause: err}
	}
	return v, nil
}

func (a *simpleAttribute[O, A]) Values(o O) ([]A, error) {
	v, err := a.Value(o)
	if err != nil {
		return nil, err
	}
	return []A{v}, nil
}

func (a *simpleAttribute[O, A]) String() string { return a.id.String() }

type multiAttribute[O, A any] struct {
	id      ID
	fn      func(O) ([]A, error)
	compare func(a, b A) int
	keyed   bool
}

// NewMulti returns a multi-valued attribute for an ordered value type. It is
// keyed unless A is a floating-point type.
func NewMulti[O any, A cmp.Ordered](name string, fn func(O) []A) Attribute[O, A] {
	return &multiAttribute[O, A]{
		id:      ID{ObjectType: TypeName[O](), Name: name},
		fn:      func(o O) ([]A, error) { return fn(o), nil },
		compare: cmp.Compare[A],
		keyed:   keyedType[A](),
	}
}

// NewMultiFunc returns a multi-valued attribute with a fallible accessor and an explicit ordering.
// The requirements on compare are those of NewFunc.
func NewMultiFunc[O, A any](id ID, fn func(O) ([]A, error), compare func(a, b A) int) Attribute[O, A] {
	return &multiAttribute[O, A]{id: id, fn: fn, compare: compare}
}

func (a *multiAttribute[O, A]) ID() ID { return a.id }

func (a *multiAttribute[O, A]) Keyed() bool { return a.keyed }

func (a *multiAttribute[O, A]) IsSimple() bool { return false }

func (a *multiAttribute[O, A]) Compare(x, y A) int { return a.compare(x, y) }

func (a *multiAttribute[O, A]) Values(o O) ([]A, error) {
	vs, err := a.fn(o)
	if err != nil {
		return nil, &AccessError{Attribute: a.id, cause: err}
	}
	return vs, nil
}

func (a *multiAttribute[O, A]) String() string { return a.id.String() }

package query

import (
	"slices"
	"strings"
)

// Conjunction matches objects matched by every child.
type Conjunction[O any] struct {
	children []Query[O]
	hash     uint64
}

// And returns the conjunction of children. An empty conjunction matches every object.
func And[O any](children ...Query[O]) *Conjunction[O] {
	c := &Conjunction[O]{children: slices.Clone(children)}
	c.hash = hashChildren(KindAnd, c.children)
	return c
}

// Kind returns KindAnd.
func (c *Conjunction[O]) Kind() Kind { return KindAnd }

// Children returns the operands in query order. The slice must not be modified.
func (c *Conjunction[O]) Children() []Query[O] { return c.children }

// Hash returns the structural hash computed at construction.
func (c *Conjunction[O]) Hash() uint64 { return c.hash }

// Equal reports structural equality (child order is significant).
func (c *Conjunction[O]) Equal(other Query[O]) bool {
	o, ok := other.(*Conjunction[O])
	return ok && o != nil && c.hash == o.hash && equalChildren(c.children, o.children)
}

// Matches reports whether every child matches.
func (c *Conjunction[O]) Matches(o O, opts *Options[O]) (bool, error) {
	for _, child := range c.children {
		ok, err := child.Matches(o, opts)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *Conjunction[O]) String() string { return joinChildren("and", c.children) }

// Disjunction matches objects matched by at least one child.
type Disjunction[O any] struct {
	children []Query[O]
	hash     uint64
}

// Or returns the disjunction of children. An empty disjunction matches nothing.
func Or[O any](children ...Query[O]) *Disjunction[O] {
	d := &Disjunction[O]{children: slices.Clone(children)}
	d.hash = hashChildren(KindOr, d.children)
	return d
}

// Kind returns KindOr.
func (d *Disjunction[O]) Kind() Kind { return KindOr }

// Children returns the operands in query order. The slice must not be modified.
func (d *Disjunction[O]) Children() []Query[O] { return d.children }

// Hash returns the structural hash computed at construction.
func (d *Disjunction[O]) Hash() uint64 { return d.hash }

// Equal reports structural equality (child order is significant).
func (d *Disjunction[O]) Equal(other Query[O]) bool {
	o, ok := other.(*Disjunction[O])
	return ok && o != nil && d.hash == o.hash && equalChildren(d.children, o.children)
}

// Matches reports whether any child matches.
func (d *Disjunction[O]) Matches(o O, opts *Options[O]) (bool, error) {
	for _, child := range d.children {
		ok, err := child.Matches(o, opts)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (d *Disjunction[O]) String() string { return joinChildren("or", d.children) }

// Negation matches objects not matched by its child.
type Negation[O any] struct {
	child Query[O]
	hash  uint64
}

// Not returns the negation of child.
func Not[O any](child Query[O]) *Negation[O] {
	return &Negation[O]{child: child, hash: hashChildren(KindNot, []Query[O]{child})}
}

// Kind returns KindNot.
func (n *Negation[O]) Kind() Kind { return KindNot }

// Child returns the negated query.
func (n *Negation[O]) Child() Query[O] { return n.child }

// Hash returns the structural hash computed at construction.
func (n *Negation[O]) Hash() uint64 { return n.hash }

// Equal reports structural equality.
func (n *Negation[O]) Equal(other Query[O]) bool {
	o, ok := other.(*Negation[O])
	return ok && o != nil && n.hash == o.hash && n.child.Equal(o.child)
}

// Matches reports whether the child does not match.
func (n *Negation[O]) Matches(o O, opts *Options[O]) (bool, error) {
	ok, err := n.child.Matches(o, opts)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (n *Negation[O]) String() string { return "not(" + n.child.String() + ")" }

// Constant is a query that matches every object (All) or none (None).
type Constant[O any] struct {
	all  bool
	hash uint64
}

// All returns a query matching every object.
func All[O any]() *Constant[O] { return newConstant[O](true) }

// None returns a query matching no object.
func None[O any]() *Constant[O] { return newConstant[O](false) }

func newConstant[O any](all bool) *Constant[O] {
	c := &Constant[O]{all: all}
	c.hash = newHasher(c.Kind()).sum()
	return c
}

// Kind returns KindAll or KindNone.
func (c *Constant[O]) Kind() Kind {
	if c.all {
		return KindAll
	}
	return KindNone
}

// Hash returns the structural hash computed at construction.
func (c *Constant[O]) Hash() uint64 { return c.hash }

// Equal reports whether other is the same constant.
func (c *Constant[O]) Equal(other Query[O]) bool {
	o, ok := other.(*Constant[O])
	return ok && o != nil && c.all == o.all
}

// Matches returns the constant.
func (c *Constant[O]) Matches(O, *Options[O]) (bool, error) { return c.all, nil }

func (c *Constant[O]) String() string { return c.Kind().String() + "()" }

func hashChildren[O any](k Kind, children []Query[O]) uint64 {
	h := newHasher(k)
	h.uint64(uint64(len(children)))
	for _, c := range children {
		h.uint64(c.Hash())
	}
	return h.sum()
}

func equalChildren[O any](a, b []Query[O]) bool {
	return slices.EqualFunc(a, b, func(x, y Query[O]) bool { return x.Equal(y) })
}

func joinChildren[O any](name string, children []Query[O]) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

package query

import (
	"maps"
	"slices"

	"github.com/hupe1980/cqgo/attribute"
)

// Deduplication selects how disjunctions treat objects matched more than once.
type Deduplication uint8

const (
	// DedupLogical yields every object at most once (default).
	DedupLogical Deduplication = iota
	// DedupNone yields an object once per matching branch.
	DedupNone
)

// String returns the name of the strategy.
func (d Deduplication) String() string {
	if d == DedupNone {
		return "none"
	}
	return "logical"
}

// Options is the immutable configuration bag threaded through evaluation.
//
// A nil *Options is valid and means "engine defaults" for every setting.
type Options[O any] struct {
	hints   map[attribute.ID]string
	forced  map[attribute.ID]string
	dedup   Deduplication
	orderBy []Order[O]
	strict  bool
	flags   map[string]any
}

// Option configures Options.
type Option[O any] func(*Options[O])

// NewOptions builds an Options value.
func NewOptions[O any](optFns ...Option[O]) *Options[O] {
	o := &Options[O]{}
	for _, fn := range optFns {
		if fn != nil {
			fn(o)
		}
	}
	return o
}

// With returns a copy of o with additional options applied. o is not modified.
func (o *Options[O]) With(optFns ...Option[O]) *Options[O] {
	c := &Options[O]{}
	if o != nil {
		c.hints = maps.Clone(o.hints)
		c.forced = maps.Clone(o.forced)
		c.dedup = o.dedup
		c.orderBy = slices.Clone(o.orderBy)
		c.strict = o.strict
		c.flags = maps.Clone(o.flags)
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(c)
		}
	}
	return c
}

// WithIndexHint prefers the named index for predicates on attr. If that index
// cannot answer a predicate the engine falls back to its default choice.
func WithIndexHint[O any](attr attribute.ID, indexName string) Option[O] {
	return func(o *Options[O]) {
		if o.hints == nil {
			o.hints = make(map[attribute.ID]string)
		}
		o.hints[attr] = indexName
	}
}

// WithForcedIndex requires the named index for predicates on attr. Evaluation
// fails if that index is missing or cannot answer a predicate.
func WithForcedIndex[O any](attr attribute.ID, indexName string) Option[O] {
	return func(o *Options[O]) {
		if o.forced == nil {
			o.forced = make(map[attribute.ID]string)
		}
		o.forced[attr] = indexName
	}
}

// WithDeduplication sets the deduplication strategy.
func WithDeduplication[O any](d Deduplication) Option[O] {
	return func(o *Options[O]) {
		o.dedup = d
	}
}

// WithOrderBy requests results totally ordered by the given orders (first
// order is most significant). Ties are broken by insertion order when the
// source records it (see engine.Sequencer), independent of the plan.
func WithOrderBy[O any](orders ...Order[O]) Option[O] {
	return func(o *Options[O]) {
		o.orderBy = append(o.orderBy, orders...)
	}
}

// WithStrict disallows full-scan fallback for predicates no index supports.
func WithStrict[O any]() Option[O] {
	return func(o *Options[O]) {
		o.strict = true
	}
}

// WithFlag sets a free-form flag for index implementations.
func WithFlag[O any](name string, value any) Option[O] {
	return func(o *Options[O]) {
		if o.flags == nil {
			o.flags = make(map[string]any)
		}
		o.flags[name] = value
	}
}

// IndexHint returns the preferred index name for attr.
func (o *Options[O]) IndexHint(attr attribute.ID) (string, bool) {
	if o == nil {
		return "", false
	}
	name, ok := o.hints[attr]
	return name, ok
}

// ForcedIndex returns the required index name for attr.
func (o *Options[O]) ForcedIndex(attr attribute.ID) (string, bool) {
	if o == nil {
		return "", false
	}
	name, ok := o.forced[attr]
	return name, ok
}

// Deduplication returns the deduplication strategy.
func (o *Options[O]) Deduplication() Deduplication {
	if o == nil {
		return DedupLogical
	}
	return o.dedup
}

// OrderBy returns the requested orders. The slice must not be modified.
func (o *Options[O]) OrderBy() []Order[O] {
	if o == nil {
		return nil
	}
	return o.orderBy
}

// Strict reports whether scan fallback is disallowed.
func (o *Options[O]) Strict() bool {
	return o != nil && o.strict
}

// Flag returns a free-form flag.
func (o *Options[O]) Flag(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.flags[name]
	return v, ok
}

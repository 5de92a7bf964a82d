package index

import (
	"iter"
	"sync/atomic"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

// Base carries the parts every concrete index shares: name, attribute and
// lifecycle state. Embed it by value and call Init before use.
type Base[O, A any] struct {
	name  string
	attr  attribute.Attribute[O, A]
	state atomic.Uint32
}

// Init names the index, binds its attribute and puts it in StateReady.
func (b *Base[O, A]) Init(name string, attr attribute.Attribute[O, A]) {
	b.name = name
	b.attr = attr
	b.state.Store(uint32(StateReady))
}

// Name returns the index name.
func (b *Base[O, A]) Name() string { return b.name }

// AttributeID returns the indexed attribute's identity.
func (b *Base[O, A]) AttributeID() attribute.ID { return b.attr.ID() }

// Attribute returns the indexed attribute.
func (b *Base[O, A]) Attribute() attribute.Attribute[O, A] { return b.attr }

// State returns the lifecycle state.
func (b *Base[O, A]) State() State { return State(b.state.Load()) }

// SetState changes the lifecycle state.
func (b *Base[O, A]) SetState(s State) { b.state.Store(uint32(s)) }

// CheckReady returns a *StateError unless the index is ready.
func (b *Base[O, A]) CheckReady() error {
	if s := b.State(); s != StateReady {
		return &StateError{Index: b.name, State: s}
	}
	return nil
}

// Predicate returns q as a predicate over the indexed attribute.
func (b *Base[O, A]) Predicate(q query.Leaf[O]) (*query.Predicate[O, A], bool) {
	p, ok := q.(*query.Predicate[O, A])
	if !ok || p.AttributeID() != b.attr.ID() {
		return nil, false
	}
	return p, true
}

// SupportsKind reports whether q is a predicate over the indexed attribute of
// one of the given kinds.
func (b *Base[O, A]) SupportsKind(q query.Leaf[O], kinds ...query.Kind) bool {
	p, ok := b.Predicate(q)
	if !ok {
		return false
	}
	for _, k := range kinds {
		if p.Kind() == k {
			return true
		}
	}
	return false
}

// SupportsLookup reports whether q is an Equal, In or Has predicate that an
// index keyed by attribute values in a Go map can answer. Equal and In need
// a keyed attribute (see attribute.Keyed); Has never looks values up.
func (b *Base[O, A]) SupportsLookup(q query.Leaf[O]) bool {
	if b.SupportsKind(q, query.KindHas) {
		return true
	}
	return attribute.Keyed(b.attr) && b.SupportsKind(q, query.KindEqual, query.KindIn)
}

// Result wraps objects retrieved for p as a result set. Membership is decided
// by the predicate itself, so probing never depends on the index contents.
func Result[O, A any](p *query.Predicate[O, A], objs iter.Seq[O], retrievalCost, mergeCost int) resultset.ResultSet[O] {
	return resultset.New(resultset.Config[O]{
		Seq: func(yield func(O, error) bool) {
			for o := range objs {
				if !yield(o, nil) {
					return
				}
			}
		},
		Contains: func(o O) (bool, error) {
			return p.Matches(o, nil)
		},
		RetrievalCost: retrievalCost,
		MergeCost:     mergeCost,
	})
}

// FilteredResult is Result for candidate sets that may hold objects not
// matching p, such as quantized buckets. Candidates are checked with p as
// they are yielded; an accessor failure stops iteration.
func FilteredResult[O, A any](p *query.Predicate[O, A], candidates iter.Seq[O], retrievalCost, mergeCost int) resultset.ResultSet[O] {
	return resultset.New(resultset.Config[O]{
		Seq: func(yield func(O, error) bool) {
			for o := range candidates {
				ok, err := p.Matches(o, nil)
				if err != nil {
					var zero O
					yield(zero, err)
					return
				}
				if ok && !yield(o, nil) {
					return
				}
			}
		},
		Contains: func(o O) (bool, error) {
			return p.Matches(o, nil)
		},
		RetrievalCost: retrievalCost,
		MergeCost:     mergeCost,
	})
}

// Keys wraps keys as a key-statistics result set.
func Keys[A any](keys []A, retrievalCost int, equal func(a, b A) bool) resultset.ResultSet[A] {
	if len(keys) == 0 {
		rs := resultset.Empty[A]()
		_ = rs.Close()
		return rs
	}
	return resultset.New(resultset.Config[A]{
		Seq: func(yield func(A, error) bool) {
			for _, k := range keys {
				if !yield(k, nil) {
					return
				}
			}
		},
		Contains: func(v A) (bool, error) {
			for _, k := range keys {
				if equal(k, v) {
					return true, nil
				}
			}
			return false, nil
		},
		RetrievalCost: retrievalCost,
		MergeCost:     len(keys),
	})
}

// Dedup drops repeated objects from seq. Multi-valued attributes can put one
// object under several keys.
func Dedup[O comparable](seq iter.Seq[O]) iter.Seq[O] {
	return func(yield func(O) bool) {
		seen := make(map[O]struct{})
		for o := range seq {
			if _, dup := seen[o]; dup {
				continue
			}
			seen[o] = struct{}{}
			if !yield(o) {
				return
			}
		}
	}
}

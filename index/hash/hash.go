// Package hash implements an index that keeps one bucket per attribute value
// in a map. It answers Equal, In and Has.
package hash

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/internal/bucket"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

// Index is a hash index over an attribute with comparable values.
//
// It is safe for concurrent use.
type Index[O, A comparable] struct {
	index.Base[O, A]

	mu      sync.RWMutex
	buckets map[A]*bucket.Set[O]
	members *bucket.Set[O]
}

var (
	_ index.Mutable[int]            = (*Index[int, int])(nil)
	_ index.KeyStatistics[int, int] = (*Index[int, int])(nil)
)

// New returns an empty hash index.
func New[O, A comparable](name string, attr attribute.Attribute[O, A]) *Index[O, A] {
	idx := &Index[O, A]{
		buckets: make(map[A]*bucket.Set[O]),
		members: bucket.New[O](),
	}
	idx.Init(name, attr)
	return idx
}

// RetrievalCost returns index.CostHash.
func (idx *Index[O, A]) RetrievalCost() int { return index.CostHash }

// Supports reports whether q is a Has predicate on the attribute, or an Equal
// or In predicate on a keyed one (see attribute.Keyed).
func (idx *Index[O, A]) Supports(q query.Leaf[O]) bool {
	return idx.SupportsLookup(q)
}

// Retrieve returns the objects in the buckets selected by q.
func (idx *Index[O, A]) Retrieve(ctx context.Context, q query.Leaf[O], _ *query.Options[O]) (resultset.ResultSet[O], error) {
	if err := idx.CheckReady(); err != nil {
		return nil, err
	}
	p, ok := idx.Predicate(q)
	if !ok || !idx.Supports(q) {
		return nil, fmt.Errorf("%w: %s on %s", index.ErrUnsupportedPredicate, q, idx.Name())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch p.Kind() {
	case query.KindHas:
		idx.mu.RLock()
		n := idx.members.Len()
		idx.mu.RUnlock()
		return index.Result(p, idx.snapshot(func() *bucket.Set[O] { return idx.members }), index.CostHash, n), nil
	default:
		keys := p.Values()
		idx.mu.RLock()
		n := 0
		for _, k := range keys {
			if b, ok := idx.buckets[k]; ok {
				n += b.Len()
			}
		}
		idx.mu.RUnlock()

		objs := idx.bucketsFor(keys)
		if len(keys) > 1 && !idx.Attribute().IsSimple() {
			objs = index.Dedup(objs)
		}
		return index.Result(p, objs, index.CostHash, n), nil
	}
}

// snapshot copies a set under the read lock when iteration starts.
func (idx *Index[O, A]) snapshot(get func() *bucket.Set[O]) iter.Seq[O] {
	return func(yield func(O) bool) {
		idx.mu.RLock()
		var objs []O
		if b := get(); b != nil {
			objs = b.Snapshot()
		}
		idx.mu.RUnlock()

		for _, o := range objs {
			if !yield(o) {
				return
			}
		}
	}
}

func (idx *Index[O, A]) bucketsFor(keys []A) iter.Seq[O] {
	return func(yield func(O) bool) {
		for _, k := range keys {
			for o := range idx.snapshot(func() *bucket.Set[O] { return idx.buckets[k] }) {
				if !yield(o) {
					return
				}
			}
		}
	}
}

// DistinctKeys returns the keys in unspecified order.
func (idx *Index[O, A]) DistinctKeys(_ context.Context, _ *query.Options[O]) (resultset.ResultSet[A], error) {
	idx.mu.RLock()
	keys := make([]A, 0, len(idx.buckets))
	for k := range idx.buckets {
		keys = append(keys, k)
	}
	idx.mu.RUnlock()

	return index.Keys(keys, index.CostHash, func(a, b A) bool { return a == b }), nil
}

// CountForKey returns the size of the bucket for key.
func (idx *Index[O, A]) CountForKey(_ context.Context, key A, _ *query.Options[O]) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if b, ok := idx.buckets[key]; ok {
		return b.Len(), nil
	}
	return 0, nil
}

type staged[O, A any] struct {
	obj  O
	keys []A
}

func (idx *Index[O, A]) stage(ctx context.Context, objs []O) ([]staged[O, A], error) {
	out := make([]staged[O, A], 0, len(objs))
	for _, o := range objs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vs, err := idx.Attribute().Values(o)
		if err != nil {
			return nil, err
		}
		out = append(out, staged[O, A]{obj: o, keys: vs})
	}
	return out, nil
}

// Add indexes objs. Attribute values are read before the index changes, so
// an accessor failure leaves the index untouched.
func (idx *Index[O, A]) Add(ctx context.Context, objs []O) error {
	entries, err := idx.stage(ctx, objs)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		for _, k := range e.keys {
			b, ok := idx.buckets[k]
			if !ok {
				b = bucket.New[O]()
				idx.buckets[k] = b
			}
			b.Add(e.obj)
		}
		if len(e.keys) > 0 {
			idx.members.Add(e.obj)
		}
	}
	return nil
}

// Remove unindexes objs.
func (idx *Index[O, A]) Remove(ctx context.Context, objs []O) error {
	entries, err := idx.stage(ctx, objs)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		for _, k := range e.keys {
			if k != k { // NaN never finds its own bucket
				for kk, b := range idx.buckets {
					if kk != kk && b.Remove(e.obj) && b.Len() == 0 {
						delete(idx.buckets, kk)
					}
				}
				continue
			}
			b, ok := idx.buckets[k]
			if !ok {
				continue
			}
			b.Remove(e.obj)
			if b.Len() == 0 {
				delete(idx.buckets, k)
			}
		}
		idx.members.Remove(e.obj)
	}
	return nil
}

// Clear removes every object.
func (idx *Index[O, A]) Clear(context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.buckets = make(map[A]*bucket.Set[O])
	idx.members = bucket.New[O]()
	return nil
}

// Len returns the number of objects with at least one value.
func (idx *Index[O, A]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.members.Len()
}

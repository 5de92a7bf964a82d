// Package bitmap implements an index that keeps one roaring posting list of
// object ordinals per attribute value. It answers Equal, In and Has.
//
// Each indexed object gets a 32-bit ordinal. Ordinals of removed objects are
// reused. In queries over many keys are answered with a single bitmap union,
// so multi-valued attributes never yield an object twice.
//
// Freeze writes the current posting lists to a blobstore.Store and opens them
// as a read-only blob index.
package bitmap

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/blobstore"
	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/index/blob"
	ibitmap "github.com/hupe1980/cqgo/internal/bitmap"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

// Index is a bitmap index over an attribute with comparable values.
//
// It is safe for concurrent use.
type Index[O, A comparable] struct {
	index.Base[O, A]

	mu       sync.RWMutex
	ords     map[O]uint32
	objs     []O
	free     []uint32
	postings map[A]*ibitmap.Bitmap
	present  *ibitmap.Bitmap
}

var (
	_ index.Mutable[int]            = (*Index[int, int])(nil)
	_ index.KeyStatistics[int, int] = (*Index[int, int])(nil)
)

// New returns an empty bitmap index.
func New[O, A comparable](name string, attr attribute.Attribute[O, A]) *Index[O, A] {
	idx := &Index[O, A]{
		ords:     make(map[O]uint32),
		postings: make(map[A]*ibitmap.Bitmap),
		present:  ibitmap.New(),
	}
	idx.Init(name, attr)
	return idx
}

// RetrievalCost returns index.CostBitmap.
func (idx *Index[O, A]) RetrievalCost() int { return index.CostBitmap }

// Supports reports whether q is a Has predicate on the attribute, or an Equal
// or In predicate on a keyed one (see attribute.Keyed).
func (idx *Index[O, A]) Supports(q query.Leaf[O]) bool {
	return idx.SupportsLookup(q)
}

// Retrieve resolves the posting lists selected by q. The matching objects are
// captured when Retrieve returns.
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

	acc := ibitmap.Get()
	defer ibitmap.Put(acc)

	idx.mu.RLock()
	if p.Kind() == query.KindHas {
		acc.Or(idx.present)
	} else {
		for _, v := range p.Values() {
			if bm, ok := idx.postings[v]; ok {
				acc.Or(bm)
			}
		}
	}
	objs := make([]O, 0, acc.Cardinality())
	for ord := range acc.Ordinals() {
		objs = append(objs, idx.objs[ord])
	}
	idx.mu.RUnlock()

	return index.Result(p, slices.Values(objs), index.CostBitmap, len(objs)), nil
}

// DistinctKeys returns the keys in unspecified order.
func (idx *Index[O, A]) DistinctKeys(_ context.Context, _ *query.Options[O]) (resultset.ResultSet[A], error) {
	idx.mu.RLock()
	keys := make([]A, 0, len(idx.postings))
	for k := range idx.postings {
		keys = append(keys, k)
	}
	idx.mu.RUnlock()

	return index.Keys(keys, index.CostBitmap, func(a, b A) bool { return a == b }), nil
}

// CountForKey returns the cardinality of the posting list for key.
func (idx *Index[O, A]) CountForKey(_ context.Context, key A, _ *query.Options[O]) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if bm, ok := idx.postings[key]; ok {
		return bm.Cardinality(), nil
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

// Add indexes objs. Objects without values get no ordinal. An accessor
// failure leaves the index untouched.
func (idx *Index[O, A]) Add(ctx context.Context, objs []O) error {
	entries, err := idx.stage(ctx, objs)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		if len(e.keys) == 0 {
			continue
		}
		ord := idx.ordinal(e.obj)
		for _, k := range e.keys {
			bm, ok := idx.postings[k]
			if !ok {
				bm = ibitmap.New()
				idx.postings[k] = bm
			}
			bm.Add(ord)
		}
		idx.present.Add(ord)
	}
	return nil
}

// ordinal returns the ordinal of o, assigning one if needed. Callers hold mu.
func (idx *Index[O, A]) ordinal(o O) uint32 {
	if ord, ok := idx.ords[o]; ok {
		return ord
	}
	var ord uint32
	if n := len(idx.free); n > 0 {
		ord = idx.free[n-1]
		idx.free = idx.free[:n-1]
		idx.objs[ord] = o
	} else {
		ord = uint32(len(idx.objs))
		idx.objs = append(idx.objs, o)
	}
	idx.ords[o] = ord
	return ord
}

// Remove unindexes objs and releases their ordinals.
func (idx *Index[O, A]) Remove(ctx context.Context, objs []O) error {
	entries, err := idx.stage(ctx, objs)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		ord, ok := idx.ords[e.obj]
		if !ok {
			continue
		}
		for _, k := range e.keys {
			if k != k { // NaN never finds its own posting list
				for kk, bm := range idx.postings {
					if kk != kk && bm.Contains(ord) {
						bm.Remove(ord)
						if bm.IsEmpty() {
							delete(idx.postings, kk)
						}
					}
				}
				continue
			}
			bm, ok := idx.postings[k]
			if !ok {
				continue
			}
			bm.Remove(ord)
			if bm.IsEmpty() {
				delete(idx.postings, k)
			}
		}
		idx.present.Remove(ord)
		delete(idx.ords, e.obj)

		var zero O
		idx.objs[ord] = zero
		idx.free = append(idx.free, ord)
	}
	return nil
}

// Clear removes every object.
func (idx *Index[O, A]) Clear(context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.ords = make(map[O]uint32)
	idx.objs = nil
	idx.free = nil
	idx.postings = make(map[A]*ibitmap.Bitmap)
	idx.present = ibitmap.New()
	return nil
}

// Len returns the number of objects with at least one value.
func (idx *Index[O, A]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.ords)
}

// Freeze writes the posting lists below prefix in store and opens them as a
// read-only index. The frozen index does not see later mutations.
func (idx *Index[O, A]) Freeze(ctx context.Context, store blobstore.Store, prefix string, optFns ...blob.Option) (*blob.Index[O, A], error) {
	idx.mu.RLock()
	postings := make(map[A]*ibitmap.Bitmap, len(idx.postings))
	for k, bm := range idx.postings {
		postings[k] = bm.Clone()
	}
	present := idx.present.Clone()
	table := blob.NewTable(idx.ords)
	idx.mu.RUnlock()

	if err := blob.Write(ctx, store, prefix, idx.Name(), idx.Attribute(), postings, present, optFns...); err != nil {
		return nil, fmt.Errorf("freeze %s: %w", idx.Name(), err)
	}
	return blob.Open(ctx, store, prefix, idx.Attribute(), table, optFns...)
}

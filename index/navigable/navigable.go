// Package navigable implements an index over sorted keys. Besides Equal, In
// and Has it answers range predicates by walking the keys between the bounds.
//
// With a quantizer, several attribute values share one key. Range and
// equality lookups then select whole buckets and filter the candidates with
// the predicate, so quantization never yields extra objects.
package navigable

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/internal/bucket"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

type entry[O comparable, A any] struct {
	key  A
	objs *bucket.Set[O]
}

// Index keeps its buckets sorted by key under the attribute's ordering.
//
// It is safe for concurrent use.
type Index[O comparable, A any] struct {
	index.Base[O, A]

	quantizer index.Quantizer[A]

	mu      sync.RWMutex
	entries []entry[O, A]
	members *bucket.Set[O]
}

var (
	_ index.Mutable[int]            = (*Index[int, int])(nil)
	_ index.KeyStatistics[int, int] = (*Index[int, int])(nil)
)

// Options configures a navigable index.
type Options[A any] struct {
	// Quantizer maps values onto keys. Nil keys every value by itself.
	Quantizer index.Quantizer[A]
}

// New returns an empty navigable index.
func New[O comparable, A any](name string, attr attribute.Attribute[O, A], optFns ...func(o *Options[A])) *Index[O, A] {
	opts := Options[A]{}
	for _, fn := range optFns {
		fn(&opts)
	}
	idx := &Index[O, A]{
		quantizer: opts.Quantizer,
		members:   bucket.New[O](),
	}
	idx.Init(name, attr)
	return idx
}

// WithQuantizer sets the key quantizer.
func WithQuantizer[A any](q index.Quantizer[A]) func(o *Options[A]) {
	return func(o *Options[A]) {
		o.Quantizer = q
	}
}

// Quantized reports whether the index merges values into shared keys.
func (idx *Index[O, A]) Quantized() bool { return idx.quantizer != nil }

func (idx *Index[O, A]) key(v A) A {
	if idx.quantizer == nil {
		return v
	}
	return idx.quantizer.Quantize(v)
}

func (idx *Index[O, A]) find(k A) (int, bool) {
	cmp := idx.Attribute().Compare
	return slices.BinarySearchFunc(idx.entries, k, func(e entry[O, A], k A) int { return cmp(e.key, k) })
}

// RetrievalCost returns index.CostNavigable.
func (idx *Index[O, A]) RetrievalCost() int { return index.CostNavigable }

// Supports reports whether q is any predicate on the attribute.
func (idx *Index[O, A]) Supports(q query.Leaf[O]) bool {
	return idx.SupportsKind(q,
		query.KindEqual, query.KindIn, query.KindHas,
		query.KindGreaterThan, query.KindLessThan, query.KindBetween,
	)
}

// Retrieve returns the objects matching q.
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

	if p.Kind() == query.KindHas {
		idx.mu.RLock()
		members := idx.members
		n := members.Len()
		idx.mu.RUnlock()
		return index.Result(p, members.Iter(&idx.mu), index.CostNavigable, n), nil
	}

	idx.mu.RLock()
	var sets []*bucket.Set[O]
	switch p.Kind() {
	case query.KindEqual, query.KindIn:
		sets = idx.pointBuckets(p.Values())
	default:
		sets = idx.rangeBuckets(p)
	}
	n := 0
	for _, s := range sets {
		n += s.Len()
	}
	idx.mu.RUnlock()

	objs := idx.iterate(sets)
	if len(sets) > 1 && !idx.Attribute().IsSimple() {
		objs = index.Dedup(objs)
	}
	if idx.Quantized() {
		return index.FilteredResult(p, objs, index.CostNavigable, n), nil
	}
	return index.Result(p, objs, index.CostNavigable, n), nil
}

// pointBuckets returns the buckets for values in ascending key order. Values
// sharing a quantized key select the bucket once. Callers hold mu.
func (idx *Index[O, A]) pointBuckets(values []A) []*bucket.Set[O] {
	var (
		out  []*bucket.Set[O]
		last = -1
	)
	for _, v := range values {
		i, found := idx.find(idx.key(v))
		if !found || i == last {
			continue
		}
		last = i
		out = append(out, idx.entries[i].objs)
	}
	return out
}

// rangeBuckets returns the buckets whose keys can hold values within the
// predicate's bounds. Callers hold mu.
func (idx *Index[O, A]) rangeBuckets(p *query.Predicate[O, A]) []*bucket.Set[O] {
	if p.IsEmptyRange() {
		return nil
	}
	start, end := 0, len(idx.entries)

	if lower, inclusive, ok := p.Lower(); ok {
		i, found := idx.find(idx.key(lower))
		if found && !inclusive && !idx.Quantized() {
			i++
		}
		start = i
	}
	if upper, inclusive, ok := p.Upper(); ok {
		j, found := idx.find(idx.key(upper))
		if found && (inclusive || idx.Quantized()) {
			j++
		}
		end = j
	}
	if start >= end {
		return nil
	}

	out := make([]*bucket.Set[O], 0, end-start)
	for _, e := range idx.entries[start:end] {
		out = append(out, e.objs)
	}
	return out
}

func (idx *Index[O, A]) iterate(sets []*bucket.Set[O]) iter.Seq[O] {
	return func(yield func(O) bool) {
		for _, s := range sets {
			for o := range s.Iter(&idx.mu) {
				if !yield(o) {
					return
				}
			}
		}
	}
}

// DistinctKeys returns the keys in ascending order.
func (idx *Index[O, A]) DistinctKeys(_ context.Context, _ *query.Options[O]) (resultset.ResultSet[A], error) {
	idx.mu.RLock()
	keys := make([]A, len(idx.entries))
	for i, e := range idx.entries {
		keys[i] = e.key
	}
	idx.mu.RUnlock()

	cmp := idx.Attribute().Compare
	return index.Keys(keys, index.CostNavigable, func(a, b A) bool { return cmp(a, b) == 0 }), nil
}

// CountForKey returns the size of the bucket holding key. With a quantizer
// key is quantized first.
func (idx *Index[O, A]) CountForKey(_ context.Context, key A, _ *query.Options[O]) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if i, found := idx.find(idx.key(key)); found {
		return idx.entries[i].objs.Len(), nil
	}
	return 0, nil
}

func (idx *Index[O, A]) values(ctx context.Context, objs []O) ([][]A, error) {
	out := make([][]A, len(objs))
	for i, o := range objs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vs, err := idx.Attribute().Values(o)
		if err != nil {
			return nil, err
		}
		out[i] = vs
	}
	return out, nil
}

// Add indexes objs. An accessor failure leaves the index untouched.
func (idx *Index[O, A]) Add(ctx context.Context, objs []O) error {
	values, err := idx.values(ctx, objs)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for n, o := range objs {
		for _, v := range values[n] {
			k := idx.key(v)
			i, found := idx.find(k)
			if !found {
				idx.entries = slices.Insert(idx.entries, i, entry[O, A]{key: k, objs: bucket.New[O]()})
			}
			idx.entries[i].objs.Add(o)
		}
		if len(values[n]) > 0 {
			idx.members.Add(o)
		}
	}
	return nil
}

// Remove unindexes objs.
func (idx *Index[O, A]) Remove(ctx context.Context, objs []O) error {
	values, err := idx.values(ctx, objs)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for n, o := range objs {
		for _, v := range values[n] {
			i, found := idx.find(idx.key(v))
			if !found {
				continue
			}
			idx.entries[i].objs.Remove(o)
			if idx.entries[i].objs.Len() == 0 {
				idx.entries = slices.Delete(idx.entries, i, i+1)
			}
		}
		idx.members.Remove(o)
	}
	return nil
}

// Clear removes every object.
func (idx *Index[O, A]) Clear(context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = nil
	idx.members = bucket.New[O]()
	return nil
}

// Len returns the number of objects with at least one value.
func (idx *Index[O, A]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.members.Len()
}

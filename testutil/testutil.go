// Package testutil provides fixtures and instrumented collaborators for tests.
package testutil

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync/atomic"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

// NewRNG returns a deterministic random source.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ValuesOf drains rs, closes it and returns attr's values of every object in
// iteration order.
func ValuesOf[O, A any](attr attribute.Attribute[O, A], rs resultset.ResultSet[O]) ([]A, error) {
	objs, err := resultset.Collect(rs)
	if err != nil {
		return nil, err
	}
	var out []A
	for _, o := range objs {
		vs, err := attr.Values(o)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}

// SetOf returns values without duplicates, keeping first occurrences in order.
func SetOf[A comparable](values ...A) []A {
	seen := make(map[A]struct{}, len(values))
	out := make([]A, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Scan filters objs with q.Matches.
func Scan[O any](objs []O, q query.Query[O]) ([]O, error) {
	var out []O
	for _, o := range objs {
		ok, err := q.Matches(o, nil)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// Counter tracks result sets handed out and closed.
type Counter struct {
	opened atomic.Int64
	closed atomic.Int64
}

// Opened returns the number of result sets handed out.
func (c *Counter) Opened() int64 { return c.opened.Load() }

// Closed returns the number of result sets closed.
func (c *Counter) Closed() int64 { return c.closed.Load() }

// Balanced reports whether every opened result set was closed.
func (c *Counter) Balanced() bool { return c.Opened() == c.Closed() }

// Track wraps rs so that closing it is counted once.
func Track[O any](c *Counter, rs resultset.ResultSet[O]) resultset.ResultSet[O] {
	c.opened.Add(1)
	return &tracked[O]{ResultSet: rs, c: c}
}

type tracked[O any] struct {
	resultset.ResultSet[O]
	c    *Counter
	done atomic.Bool
	err  error
}

func (t *tracked[O]) Close() error {
	if t.done.CompareAndSwap(false, true) {
		t.c.closed.Add(1)
		t.err = t.ResultSet.Close()
	}
	return t.err
}

// CountingIndex wraps an index and counts the result sets it returns.
type CountingIndex[O any] struct {
	index.Index[O]
	Counter

	retrievals atomic.Int64

	// CloseErr, if set, is returned by every Close of a retrieved set.
	CloseErr error
}

// NewCountingIndex wraps idx.
func NewCountingIndex[O any](idx index.Index[O]) *CountingIndex[O] {
	return &CountingIndex[O]{Index: idx}
}

// Retrieve delegates to the wrapped index and tracks the result.
func (c *CountingIndex[O]) Retrieve(ctx context.Context, q query.Leaf[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	c.retrievals.Add(1)
	rs, err := c.Index.Retrieve(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	if c.CloseErr != nil {
		rs = &failingClose[O]{ResultSet: rs, err: c.CloseErr}
	}
	return Track(&c.Counter, rs), nil
}

// RetrievalCost reports the wrapped index's cost, or resultset.CostUnknown.
func (c *CountingIndex[O]) RetrievalCost() int {
	if cost, ok := c.Index.(index.Coster); ok {
		return cost.RetrievalCost()
	}
	return resultset.CostUnknown
}

// Retrievals returns the number of Retrieve calls.
func (c *CountingIndex[O]) Retrievals() int64 { return c.retrievals.Load() }

type failingClose[O any] struct {
	resultset.ResultSet[O]
	err error
}

func (f *failingClose[O]) Close() error {
	_ = f.ResultSet.Close()
	return f.err
}

// CountingSource is an in-memory base collection that counts full scans.
type CountingSource[O comparable] struct {
	Counter
	Items []O
}

// NewCountingSource returns a source over items.
func NewCountingSource[O comparable](items ...O) *CountingSource[O] {
	return &CountingSource[O]{Items: items}
}

// All returns every item.
func (s *CountingSource[O]) All(context.Context, *query.Options[O]) (resultset.ResultSet[O], error) {
	return Track(&s.Counter, resultset.FromSlice(s.Items)), nil
}

// Len returns the number of items.
func (s *CountingSource[O]) Len() int { return len(s.Items) }

// Sequence returns the position of o in Items.
func (s *CountingSource[O]) Sequence(o O) (uint64, bool) {
	i := slices.Index(s.Items, o)
	if i < 0 {
		return 0, false
	}
	return uint64(i), true
}

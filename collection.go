package cqgo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/cqgo/engine"
	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/internal/bucket"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

// scanCost is the retrieval cost reported for a full scan of the collection.
const scanCost = 100

// Collection is an indexed set of objects. Object identity is Go equality
// on O, so pointer types compare by address.
//
// Mutations are applied to every maintained index in parallel. A mutation
// either reaches all indexes or none: if one index fails, the indexes that
// succeeded are rolled back and the object table is left untouched.
//
// Result sets are lazy. Iterating while the collection is mutated yields a
// consistent snapshot per index, but different indexes of one query may
// observe different snapshots.
//
// It is safe for concurrent use.
type Collection[O comparable] struct {
	mu       sync.RWMutex
	objects  *bucket.Set[O]
	registry *index.Registry[O]
	mutable  []index.Mutable[O]
	readOnly int

	engine *engine.Engine[O]
	opts   options
	closed atomic.Bool
}

var (
	_ engine.Source[int]    = (*Collection[int])(nil)
	_ engine.Sequencer[int] = (*Collection[int])(nil)
)

// New returns an empty collection without indexes.
func New[O comparable](optFns ...Option) *Collection[O] {
	opts := applyOptions(optFns)
	c := &Collection[O]{
		objects:  bucket.New[O](),
		registry: index.NewRegistry[O](),
		opts:     opts,
	}
	c.engine = engine.New[O](c, c.registry, opts.engineOptions()...)
	return c
}

// Len returns the number of objects.
func (c *Collection[O]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.objects.Len()
}

// Contains reports whether o is in the collection.
func (c *Collection[O]) Contains(o O) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.objects.Contains(o)
}

// Sequence returns the insertion sequence number of o. Ordered queries
// break ties by it, so equal objects come back in insertion order
// whichever plan answered the query.
func (c *Collection[O]) Sequence(o O) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.objects.Sequence(o)
}

// All returns every object in insertion order. The snapshot is taken when
// iteration starts.
func (c *Collection[O]) All(ctx context.Context, _ *query.Options[O]) (resultset.ResultSet[O], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	objs := c.objects.Iter(&c.mu)
	c.mu.RUnlock()

	return resultset.New(resultset.Config[O]{
		Seq: func(yield func(O, error) bool) {
			for o := range objs {
				if !yield(o, nil) {
					return
				}
			}
		},
		Contains: func(o O) (bool, error) {
			return c.Contains(o), nil
		},
		RetrievalCost: scanCost,
		MergeCost:     c.Len(),
	}), nil
}

// Add inserts objs. Objects already present are ignored.
func (c *Collection[O]) Add(ctx context.Context, objs ...O) error {
	if c.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	c.mu.Lock()
	n, err := c.add(ctx, objs)
	c.mu.Unlock()

	err = translateError(err)
	c.opts.metricsCollector.RecordAdd(n, time.Since(start), err)
	c.opts.logger.LogAdd(ctx, n, time.Since(start), err)
	return err
}

// Remove deletes objs. Objects not present are ignored.
func (c *Collection[O]) Remove(ctx context.Context, objs ...O) error {
	if c.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	c.mu.Lock()
	n, err := c.remove(ctx, objs)
	c.mu.Unlock()

	err = translateError(err)
	c.opts.metricsCollector.RecordRemove(n, time.Since(start), err)
	c.opts.logger.LogRemove(ctx, n, time.Since(start), err)
	return err
}

// Update removes one set of objects and adds another as a single step. If
// adding fails, the removed objects are restored.
func (c *Collection[O]) Update(ctx context.Context, remove, add []O) error {
	if c.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	c.mu.Lock()
	removed, added, err := c.update(ctx, remove, add)
	c.mu.Unlock()

	err = translateError(err)
	c.opts.metricsCollector.RecordUpdate(time.Since(start), err)
	c.opts.logger.LogUpdate(ctx, removed, added, err)
	return err
}

func (c *Collection[O]) update(ctx context.Context, remove, add []O) (int, int, error) {
	gone := c.present(remove)
	if _, err := c.remove(ctx, gone); err != nil {
		return 0, 0, err
	}
	added, err := c.add(ctx, add)
	if err != nil {
		if _, rerr := c.add(context.WithoutCancel(ctx), gone); rerr != nil {
			c.opts.logger.WarnContext(ctx, "restoring removed objects failed", "error", rerr)
		}
		return 0, 0, err
	}
	return len(gone), added, nil
}

// add indexes and stores the objects not yet present. Callers hold mu.
func (c *Collection[O]) add(ctx context.Context, objs []O) (int, error) {
	if c.readOnly > 0 {
		return 0, index.ErrReadOnly
	}
	fresh := make([]O, 0, len(objs))
	seen := make(map[O]struct{}, len(objs))
	for _, o := range objs {
		if _, dup := seen[o]; dup || c.objects.Contains(o) {
			continue
		}
		seen[o] = struct{}{}
		fresh = append(fresh, o)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := c.apply(ctx, fresh, index.Mutable[O].Add, index.Mutable[O].Remove); err != nil {
		return 0, err
	}
	for _, o := range fresh {
		c.objects.Add(o)
	}
	return len(fresh), nil
}

// remove unindexes and deletes the objects present. Callers hold mu.
func (c *Collection[O]) remove(ctx context.Context, objs []O) (int, error) {
	if c.readOnly > 0 {
		return 0, index.ErrReadOnly
	}
	gone := c.present(objs)
	if len(gone) == 0 {
		return 0, nil
	}

	if err := c.apply(ctx, gone, index.Mutable[O].Remove, index.Mutable[O].Add); err != nil {
		return 0, err
	}
	for _, o := range gone {
		c.objects.Remove(o)
	}
	return len(gone), nil
}

// present returns the distinct objs in the collection. Callers hold mu.
func (c *Collection[O]) present(objs []O) []O {
	out := make([]O, 0, len(objs))
	seen := make(map[O]struct{}, len(objs))
	for _, o := range objs {
		if _, dup := seen[o]; dup || !c.objects.Contains(o) {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

type mutation[O any] func(index.Mutable[O], context.Context, []O) error

// apply runs do on every maintained index in parallel. When one fails, the
// indexes that succeeded are reverted with undo. Callers hold mu.
func (c *Collection[O]) apply(ctx context.Context, objs []O, do, undo mutation[O]) error {
	if len(c.mutable) == 0 {
		return nil
	}

	done := make([]bool, len(c.mutable))
	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range c.mutable {
		g.Go(func() error {
			if err := do(idx, gctx, objs); err != nil {
				return fmt.Errorf("index %q: %w", idx.Name(), err)
			}
			done[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		return nil
	}

	rctx := context.WithoutCancel(ctx)
	for i, idx := range c.mutable {
		if !done[i] {
			continue
		}
		if uerr := undo(idx, rctx, objs); uerr != nil {
			c.opts.logger.WithIndex(idx.Name()).WarnContext(ctx, "index rollback failed", "error", uerr)
		}
	}
	return err
}

// AddIndex populates idx with the current objects and registers it. From
// then on it is maintained on every mutation. Queries do not see the index
// until it is built.
func (c *Collection[O]) AddIndex(ctx context.Context, idx index.Mutable[O]) error {
	if c.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.objects.Len()
	err := c.build(ctx, idx)
	c.opts.metricsCollector.RecordIndexBuild(idx.Name(), n, time.Since(start), err)
	c.opts.logger.LogIndexBuild(ctx, idx.Name(), n, time.Since(start), err)
	return translateError(err)
}

func (c *Collection[O]) build(ctx context.Context, idx index.Mutable[O]) error {
	if _, ok := c.registry.Get(idx.Name()); ok {
		return fmt.Errorf("%w: %q", index.ErrDuplicateIndex, idx.Name())
	}

	rc := c.opts.resourceController
	if err := rc.AcquireBackground(ctx); err != nil {
		return err
	}
	defer rc.ReleaseBackground()

	lc, hasLifecycle := idx.(index.Lifecycle)
	if hasLifecycle {
		lc.SetState(index.StateBuilding)
	}
	if err := idx.Add(ctx, c.objects.Snapshot()); err != nil {
		_ = idx.Clear(context.WithoutCancel(ctx))
		return err
	}
	if hasLifecycle {
		lc.SetState(index.StateReady)
	}

	if err := c.registry.Register(idx); err != nil {
		return err
	}
	c.mutable = append(c.mutable, idx)
	c.engine.InvalidatePlans()
	return nil
}

// AttachIndex registers a read-only index, such as one opened from a blob
// store. The caller guarantees it reflects the current objects. While a
// read-only index is attached, Add, Remove and Update fail with ErrReadOnly.
func (c *Collection[O]) AttachIndex(idx index.Index[O]) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.Register(idx); err != nil {
		return translateError(err)
	}
	c.readOnly++
	c.engine.InvalidatePlans()
	return nil
}

// DropIndex unregisters the named index. Its state becomes
// index.StateDropped; its contents are left as they are.
func (c *Collection[O]) DropIndex(ctx context.Context, name string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.registry.Unregister(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrIndexNotFound, name)
	}
	if _, ok := idx.(index.Mutable[O]); ok {
		for i, m := range c.mutable {
			if m.Name() == name {
				c.mutable = append(c.mutable[:i], c.mutable[i+1:]...)
				break
			}
		}
	} else {
		c.readOnly--
	}
	c.engine.InvalidatePlans()
	c.opts.logger.LogIndexDrop(ctx, name)
	return nil
}

// Index returns the named index.
func (c *Collection[O]) Index(name string) (index.Index[O], bool) {
	return c.registry.Get(name)
}

// Indexes returns the registered index names in registration order.
func (c *Collection[O]) Indexes() []string {
	idxs := c.registry.Indexes()
	names := make([]string, len(idxs))
	for i, idx := range idxs {
		names[i] = idx.Name()
	}
	return names
}

// Retrieve evaluates q. The caller must close the returned set.
func (c *Collection[O]) Retrieve(ctx context.Context, q query.Query[O], optFns ...query.Option[O]) (resultset.ResultSet[O], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	rs, err := c.engine.Evaluate(ctx, q, query.NewOptions(optFns...))
	if err != nil {
		return nil, translateError(err)
	}
	return &results[O]{ResultSet: rs}, nil
}

// Query evaluates q and collects every match.
func (c *Collection[O]) Query(ctx context.Context, q query.Query[O], optFns ...query.Option[O]) ([]O, error) {
	rs, err := c.Retrieve(ctx, q, optFns...)
	if err != nil {
		return nil, err
	}
	return resultset.Collect(rs)
}

// Explain returns the access path Retrieve would take for q.
func (c *Collection[O]) Explain(q query.Query[O], optFns ...query.Option[O]) (*engine.Plan, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	p, err := c.engine.Explain(q, query.NewOptions(optFns...))
	return p, translateError(err)
}

// PlanCacheStats returns statistics of the leaf plan cache.
func (c *Collection[O]) PlanCacheStats() engine.PlanCacheStats {
	return c.engine.PlanCacheStats()
}

// results translates iteration and close errors into the package
// vocabulary.
type results[O any] struct {
	resultset.ResultSet[O]
}

func (r *results[O]) Err() error { return translateError(r.ResultSet.Err()) }

func (r *results[O]) Close() error { return translateError(r.ResultSet.Close()) }

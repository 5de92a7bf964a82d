package engine

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resource"
	"github.com/hupe1980/cqgo/resultset"
)

// Source is the base collection queries are evaluated against.
type Source[O any] interface {
	// All returns every object. Used for scans and negation.
	All(ctx context.Context, opts *query.Options[O]) (resultset.ResultSet[O], error)

	// Len returns the number of objects.
	Len() int
}

// Sequencer is implemented by sources that know the insertion order of
// their objects. Ordered results break ties by it.
type Sequencer[O any] interface {
	// Sequence returns the insertion sequence number of o, or false if o is
	// not in the source. Later insertions have larger numbers.
	Sequence(o O) (uint64, bool)
}

// IndexLookup finds indexes by attribute or name. *index.Registry
// implements it.
type IndexLookup[O any] interface {
	Lookup(attr attribute.ID) []index.Index[O]
	Get(name string) (index.Index[O], bool)
}

// Engine evaluates queries over a Source using the indexes of an
// IndexLookup.
//
// It is safe for concurrent use if the source and indexes are.
type Engine[O comparable] struct {
	src     Source[O]
	indexes IndexLookup[O]

	logger   *slog.Logger
	metrics  MetricsObserver
	rc       *resource.Controller
	plans    *planCache[O]
	strict   bool
	pushDown bool
}

// New returns an engine over src and indexes.
func New[O comparable](src Source[O], indexes IndexLookup[O], optFns ...Option) *Engine[O] {
	cfg := applyOptions(optFns)
	return &Engine[O]{
		src:      src,
		indexes:  indexes,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		rc:       cfg.resourceController,
		plans:    newPlanCache[O](cfg.planCacheSize),
		strict:   cfg.strict,
		pushDown: cfg.pushDown,
	}
}

// Evaluate resolves q to a lazy result set. The caller owns the result and
// must close it. opts may be nil.
//
// An accessor failure while iterating stops the result; Err reports the
// *attribute.AccessError and no further objects are yielded.
func (e *Engine[O]) Evaluate(ctx context.Context, q query.Query[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	start := time.Now()

	release, err := e.rc.AcquireQuery(ctx)
	if err != nil {
		e.finish(ctx, q, start, err)
		return nil, err
	}

	if e.pushDown {
		q = query.PushDownNot(q)
	}

	rs, err := e.eval(ctx, q, opts)
	if err == nil {
		if orders := opts.OrderBy(); len(orders) > 0 {
			rs = resultset.Sort(rs, compareBy(orders, e.sequencer()))
		}
	}
	e.finish(ctx, q, start, err)
	if err != nil {
		release()
		return nil, err
	}

	return &evaluation[O]{
		ResultSet: rs,
		ctx:       ctx,
		logger:    e.logger,
		metrics:   e.metrics,
		release:   release,
	}, nil
}

func (e *Engine[O]) finish(ctx context.Context, q query.Query[O], start time.Time, err error) {
	d := time.Since(start)
	e.metrics.OnQuery(d, err)
	if err != nil {
		e.logger.ErrorContext(ctx, "query failed",
			"query", logQuery[O]{q},
			"error", err,
		)
		return
	}
	e.logger.DebugContext(ctx, "query evaluated",
		"query", logQuery[O]{q},
		"duration", d,
	)
}

func (e *Engine[O]) sequencer() func(O) (uint64, bool) {
	if sq, ok := e.src.(Sequencer[O]); ok {
		return sq.Sequence
	}
	return nil
}

// InvalidatePlans drops every cached index choice. Call it when indexes are
// added or removed.
func (e *Engine[O]) InvalidatePlans() { e.plans.purge() }

// PlanCacheStats returns plan cache statistics.
func (e *Engine[O]) PlanCacheStats() PlanCacheStats { return e.plans.stats() }

func (e *Engine[O]) eval(ctx context.Context, q query.Query[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch n := q.(type) {
	case *query.Conjunction[O]:
		return e.evalAnd(ctx, n.Children(), opts)
	case *query.Disjunction[O]:
		return e.evalOr(ctx, n.Children(), opts)
	case *query.Negation[O]:
		return e.evalNot(ctx, n.Child(), opts)
	case *query.Constant[O]:
		if n.Kind() == query.KindAll {
			return e.src.All(ctx, opts)
		}
		return resultset.Empty[O](), nil
	case query.Leaf[O]:
		rs, err := e.retrieve(ctx, n, opts)
		if err != nil || rs != nil {
			return rs, err
		}
		return e.scan(ctx, n, opts)
	default:
		return nil, &UnsupportedQueryError{Query: q.String(), Reason: "unknown query node"}
	}
}

// retrieve answers leaf from an index. It returns a nil set when no index
// supports leaf and scanning is allowed.
func (e *Engine[O]) retrieve(ctx context.Context, leaf query.Leaf[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	idx, err := e.choose(leaf, opts)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		if e.strict || opts.Strict() {
			return nil, &UnsupportedQueryError{Query: leaf.String(), Reason: "no index supports it and scanning is disabled"}
		}
		e.metrics.OnLeaf(leaf.AttributeID(), ScanIndex)
		return nil, nil
	}
	e.metrics.OnLeaf(leaf.AttributeID(), idx.Name())
	return idx.Retrieve(ctx, leaf, opts)
}

func (e *Engine[O]) scan(ctx context.Context, q query.Query[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	all, err := e.src.All(ctx, opts)
	if err != nil {
		return nil, err
	}
	return resultset.Filter(all, matcher(q, opts)), nil
}

func (e *Engine[O]) evalAnd(ctx context.Context, children []query.Query[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	var (
		sets     []resultset.ResultSet[O]
		residual []query.Query[O]
		negated  []query.Query[O]
	)

	for _, c := range children {
		if n, ok := c.(*query.Negation[O]); ok {
			negated = append(negated, n.Child())
			continue
		}
		if leaf, ok := c.(query.Leaf[O]); ok {
			rs, err := e.retrieve(ctx, leaf, opts)
			if err != nil {
				return nil, e.abort(ctx, err, sets...)
			}
			if rs == nil {
				residual = append(residual, c)
				continue
			}
			sets = append(sets, rs)
			continue
		}
		rs, err := e.eval(ctx, c, opts)
		if err != nil {
			return nil, e.abort(ctx, err, sets...)
		}
		sets = append(sets, rs)
	}

	if len(sets) == 0 {
		all, err := e.src.All(ctx, opts)
		if err != nil {
			return nil, err
		}
		sets = append(sets, all)
	}

	// Smallest set drives; equal costs keep query order.
	slices.SortStableFunc(sets, func(a, b resultset.ResultSet[O]) int {
		return cmp.Compare(a.MergeCost(), b.MergeCost())
	})
	rs := resultset.Intersect(sets...)

	for _, r := range residual {
		rs = resultset.Filter(rs, matcher(r, opts))
	}
	for _, n := range negated {
		sub, err := e.eval(ctx, n, opts)
		if err != nil {
			return nil, e.abort(ctx, err, rs)
		}
		rs = resultset.Difference(rs, sub)
	}
	return rs, nil
}

func (e *Engine[O]) evalOr(ctx context.Context, children []query.Query[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	var (
		sets     []resultset.ResultSet[O]
		residual []query.Query[O]
	)

	for _, c := range children {
		if leaf, ok := c.(query.Leaf[O]); ok {
			rs, err := e.retrieve(ctx, leaf, opts)
			if err != nil {
				return nil, e.abort(ctx, err, sets...)
			}
			if rs == nil {
				residual = append(residual, c)
				continue
			}
			sets = append(sets, rs)
			continue
		}
		rs, err := e.eval(ctx, c, opts)
		if err != nil {
			return nil, e.abort(ctx, err, sets...)
		}
		sets = append(sets, rs)
	}

	// Unindexed leaves share one scan.
	if len(residual) > 0 {
		var q query.Query[O] = residual[0]
		if len(residual) > 1 {
			q = query.Or[O](residual...)
		}
		rs, err := e.scan(ctx, q, opts)
		if err != nil {
			return nil, e.abort(ctx, err, sets...)
		}
		sets = append(sets, rs)
	}

	if len(sets) == 0 {
		return resultset.Empty[O](), nil
	}
	return resultset.Union(opts.Deduplication() == query.DedupLogical, sets...), nil
}

func (e *Engine[O]) evalNot(ctx context.Context, child query.Query[O], opts *query.Options[O]) (resultset.ResultSet[O], error) {
	if leaf, ok := child.(query.Leaf[O]); ok {
		sub, err := e.retrieve(ctx, leaf, opts)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return e.scan(ctx, query.Not[O](child), opts)
		}
		all, err := e.src.All(ctx, opts)
		if err != nil {
			return nil, e.abort(ctx, err, sub)
		}
		return resultset.Difference(all, sub), nil
	}

	all, err := e.src.All(ctx, opts)
	if err != nil {
		return nil, err
	}
	sub, err := e.eval(ctx, child, opts)
	if err != nil {
		return nil, e.abort(ctx, err, all)
	}
	return resultset.Difference(all, sub), nil
}

// choose picks the index answering leaf, or nil for a scan.
func (e *Engine[O]) choose(leaf query.Leaf[O], opts *query.Options[O]) (index.Index[O], error) {
	attr := leaf.AttributeID()

	if name, ok := opts.ForcedIndex(attr); ok {
		idx, ok := e.indexes.Get(name)
		if !ok || idx.AttributeID() != attr || !idx.Supports(leaf) {
			return nil, &UnsupportedQueryError{Query: leaf.String(), Reason: "forced index " + name + " cannot answer it"}
		}
		return idx, nil
	}

	if name, ok := opts.IndexHint(attr); ok {
		if idx, ok := e.indexes.Get(name); ok && idx.AttributeID() == attr && idx.Supports(leaf) {
			return idx, nil
		}
	}

	if e.plans != nil {
		name, hit := e.plans.get(leaf)
		e.metrics.OnPlanCache(hit)
		if hit {
			if name == ScanIndex {
				return nil, nil
			}
			if idx, ok := e.indexes.Get(name); ok && idx.Supports(leaf) {
				return idx, nil
			}
		}
	}

	idx := e.cheapest(leaf)
	name := ScanIndex
	if idx != nil {
		name = idx.Name()
	}
	e.plans.put(leaf, name)
	return idx, nil
}

// cheapest returns the supporting index with the lowest retrieval cost.
// Ties go to the index registered first.
func (e *Engine[O]) cheapest(leaf query.Leaf[O]) index.Index[O] {
	var (
		best     index.Index[O]
		bestCost int
	)
	for _, idx := range e.indexes.Lookup(leaf.AttributeID()) {
		if !idx.Supports(leaf) {
			continue
		}
		cost := resultset.CostUnknown
		if c, ok := idx.(index.Coster); ok {
			cost = c.RetrievalCost()
		}
		if best == nil || cost < bestCost {
			best, bestCost = idx, cost
		}
	}
	return best
}

// abort closes sets opened before err and attaches close failures to err.
func (e *Engine[O]) abort(ctx context.Context, err error, sets ...resultset.ResultSet[O]) error {
	var errs []error
	for _, rs := range sets {
		if cerr := rs.Close(); cerr != nil {
			if re, ok := resultset.Released(cerr); ok {
				errs = append(errs, re.Errs...)
			} else {
				errs = append(errs, cerr)
			}
		}
	}
	if len(errs) == 0 {
		return err
	}
	release := &resultset.ReleaseError{Errs: errs}
	e.logger.WarnContext(ctx, "closing result sets failed", "error", release)
	e.metrics.OnRelease(release)
	return resultset.AttachRelease(err, release)
}

func matcher[O any](q query.Query[O], opts *query.Options[O]) func(O) (bool, error) {
	return func(o O) (bool, error) { return q.Matches(o, opts) }
}

// compareBy orders by orders, then by insertion sequence when seq is not
// nil. Objects the source no longer holds sort after the others.
func compareBy[O comparable](orders []query.Order[O], seq func(O) (uint64, bool)) func(a, b O) (int, error) {
	type position struct {
		seq uint64
		ok  bool
	}
	positions := make(map[O]position)
	lookup := func(o O) position {
		p, cached := positions[o]
		if !cached {
			p.seq, p.ok = seq(o)
			positions[o] = p
		}
		return p
	}

	return func(a, b O) (int, error) {
		for _, ord := range orders {
			c, err := ord.Compare(a, b)
			if err != nil || c != 0 {
				return c, err
			}
		}
		if seq == nil {
			return 0, nil
		}
		pa, pb := lookup(a), lookup(b)
		switch {
		case pa.ok && pb.ok:
			return cmp.Compare(pa.seq, pb.seq), nil
		case pa.ok:
			return -1, nil
		case pb.ok:
			return 1, nil
		}
		return 0, nil
	}
}

// evaluation is the result handed to callers of Evaluate. Closing it releases
// the admission slot.
type evaluation[O any] struct {
	resultset.ResultSet[O]

	ctx     context.Context
	logger  *slog.Logger
	metrics MetricsObserver
	release func()

	once sync.Once
	err  error
}

func (ev *evaluation[O]) Close() error {
	ev.once.Do(func() {
		ev.err = ev.ResultSet.Close()
		ev.release()
		if ev.err != nil {
			ev.logger.WarnContext(ev.ctx, "closing result set failed", "error", ev.err)
			ev.metrics.OnRelease(ev.err)
		}
	})
	return ev.err
}

// logQuery renders a query only when the record is emitted.
type logQuery[O any] struct {
	q query.Query[O]
}

func (l logQuery[O]) LogValue() slog.Value { return slog.StringValue(l.q.String()) }

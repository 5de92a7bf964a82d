package engine

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/cqgo/query"
)

// planCache maps leaf predicates to the name of the index chosen for them.
// Keys are structural hashes; colliding predicates share a slot and are told
// apart with Equal.
type planCache[O any] struct {
	lru    *lru.Cache[uint64, []plan[O]]
	hits   atomic.Uint64
	misses atomic.Uint64
}

type plan[O any] struct {
	leaf  query.Leaf[O]
	index string
}

// PlanCacheStats reports plan cache effectiveness.
type PlanCacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

func newPlanCache[O any](size int) *planCache[O] {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[uint64, []plan[O]](size)
	if err != nil {
		return nil
	}
	return &planCache[O]{lru: c}
}

func (c *planCache[O]) get(leaf query.Leaf[O]) (string, bool) {
	if c == nil {
		return "", false
	}
	if plans, ok := c.lru.Get(leaf.Hash()); ok {
		for _, p := range plans {
			if p.leaf.Equal(leaf) {
				c.hits.Add(1)
				return p.index, true
			}
		}
	}
	c.misses.Add(1)
	return "", false
}

func (c *planCache[O]) put(leaf query.Leaf[O], index string) {
	if c == nil {
		return
	}
	h := leaf.Hash()
	plans, _ := c.lru.Peek(h)
	next := make([]plan[O], 0, len(plans)+1)
	for _, p := range plans {
		if !p.leaf.Equal(leaf) {
			next = append(next, p)
		}
	}
	c.lru.Add(h, append(next, plan[O]{leaf: leaf, index: index}))
}

func (c *planCache[O]) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func (c *planCache[O]) stats() PlanCacheStats {
	if c == nil {
		return PlanCacheStats{}
	}
	return PlanCacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.lru.Len(),
	}
}

package cqgo

import (
	"context"

	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/internal/bucket"
)

// Close drops every index and empties the collection. Maintained indexes are
// cleared and left in index.StateDropped. Other methods fail with ErrClosed
// afterwards; closing twice is a no-op.
//
// Result sets still open must be closed by their owners.
func (c *Collection[O]) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, name := range c.Indexes() {
		idx, _ := c.registry.Unregister(name)
		m, ok := idx.(index.Mutable[O])
		if !ok {
			continue
		}
		if err := m.Clear(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.mutable = nil
	c.readOnly = 0
	c.objects = bucket.New[O]()
	c.engine.InvalidatePlans()
	return firstErr
}

package index

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/cqgo/attribute"
)

// Registry maps attributes to the indexes built over them.
//
// It is safe for concurrent use.
type Registry[O any] struct {
	mu     sync.RWMutex
	order  []Index[O]
	byName map[string]Index[O]
}

// NewRegistry returns an empty registry.
func NewRegistry[O any]() *Registry[O] {
	return &Registry[O]{byName: make(map[string]Index[O])}
}

// Register adds idx. Names must be unique.
func (r *Registry[O]) Register(idx Index[O]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[idx.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateIndex, idx.Name())
	}
	r.byName[idx.Name()] = idx
	r.order = append(r.order, idx)
	return nil
}

// Unregister removes the named index and marks it dropped.
func (r *Registry[O]) Unregister(name string) (Index[O], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	delete(r.byName, name)
	r.order = slices.DeleteFunc(r.order, func(i Index[O]) bool { return i.Name() == name })
	if lc, ok := idx.(Lifecycle); ok {
		lc.SetState(StateDropped)
	}
	return idx, true
}

// Get returns the named index.
func (r *Registry[O]) Get(name string) (Index[O], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byName[name]
	return idx, ok
}

// Lookup returns the indexes over attr in registration order.
func (r *Registry[O]) Lookup(attr attribute.ID) []Index[O] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Index[O]
	for _, idx := range r.order {
		if idx.AttributeID() == attr {
			out = append(out, idx)
		}
	}
	return out
}

// Indexes returns every index in registration order.
func (r *Registry[O]) Indexes() []Index[O] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

// Len returns the number of registered indexes.
func (r *Registry[O]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

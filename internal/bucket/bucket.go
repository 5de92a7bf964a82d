// Package bucket provides the insertion-ordered object sets stored under
// index keys.
package bucket

import (
	"iter"
	"sync"
)

// Set is an insertion-ordered set of objects. It is not safe for concurrent
// use; indexes guard it with their own lock.
type Set[O comparable] struct {
	items []O
	live  []bool
	seqs  []uint64
	pos   map[O]int
	dead  int
	next  uint64
}

// New returns an empty set.
func New[O comparable]() *Set[O] {
	return &Set[O]{pos: make(map[O]int)}
}

// Add inserts o and reports whether it was absent.
func (s *Set[O]) Add(o O) bool {
	if _, ok := s.pos[o]; ok {
		return false
	}
	s.pos[o] = len(s.items)
	s.items = append(s.items, o)
	s.live = append(s.live, true)
	s.seqs = append(s.seqs, s.next)
	s.next++
	return true
}

// Remove deletes o and reports whether it was present.
func (s *Set[O]) Remove(o O) bool {
	i, ok := s.pos[o]
	if !ok {
		return false
	}
	delete(s.pos, o)
	s.live[i] = false
	var zero O
	s.items[i] = zero
	s.dead++
	if s.dead > len(s.items)/2 {
		s.compact()
	}
	return true
}

func (s *Set[O]) compact() {
	items := make([]O, 0, len(s.pos))
	live := make([]bool, 0, len(s.pos))
	seqs := make([]uint64, 0, len(s.pos))
	for i, o := range s.items {
		if !s.live[i] {
			continue
		}
		s.pos[o] = len(items)
		items = append(items, o)
		live = append(live, true)
		seqs = append(seqs, s.seqs[i])
	}
	s.items, s.live, s.seqs, s.dead = items, live, seqs, 0
}

// Contains reports whether o is in the set.
func (s *Set[O]) Contains(o O) bool {
	_, ok := s.pos[o]
	return ok
}

// Sequence returns the insertion sequence number of o. Numbers grow with
// every Add and survive compaction; an object removed and added again gets
// a new one.
func (s *Set[O]) Sequence(o O) (uint64, bool) {
	i, ok := s.pos[o]
	if !ok {
		return 0, false
	}
	return s.seqs[i], true
}

// Len returns the number of objects.
func (s *Set[O]) Len() int { return len(s.pos) }

// Snapshot returns the objects in insertion order. The result is owned by the
// caller.
func (s *Set[O]) Snapshot() []O {
	out := make([]O, 0, len(s.pos))
	for i, o := range s.items {
		if s.live[i] {
			out = append(out, o)
		}
	}
	return out
}

// Iter returns an iterator over the set that takes a snapshot under mu's read
// lock when iteration starts. mu is the lock guarding s.
func (s *Set[O]) Iter(mu *sync.RWMutex) iter.Seq[O] {
	return func(yield func(O) bool) {
		mu.RLock()
		objs := s.Snapshot()
		mu.RUnlock()

		for _, o := range objs {
			if !yield(o) {
				return
			}
		}
	}
}

package resultset

import (
	"iter"
	"slices"
)

// Sort yields the objects of rs ordered by cmp. The sort is stable: objects
// that compare equal keep the order in which rs produced them.
//
// Sort materializes rs on the first call to Next.
func Sort[O any](rs ResultSet[O], cmp func(a, b O) (int, error)) ResultSet[O] {
	return &sortSet[O]{in: rs, cmp: cmp}
}

type sortSet[O any] struct {
	in     ResultSet[O]
	cmp    func(a, b O) (int, error)
	items  []O
	loaded bool
	pos    int
	err    error
	closer
}

func (s *sortSet[O]) load() {
	s.loaded = true
	for s.in.Next() {
		s.items = append(s.items, s.in.Value())
	}
	if err := s.in.Err(); err != nil {
		s.err = err
		s.items = nil
		return
	}
	var cmpErr error
	slices.SortStableFunc(s.items, func(a, b O) int {
		if cmpErr != nil {
			return 0
		}
		c, err := s.cmp(a, b)
		if err != nil {
			cmpErr = err
		}
		return c
	})
	if cmpErr != nil {
		s.err = cmpErr
		s.items = nil
	}
}

func (s *sortSet[O]) Next() bool {
	if s.closed() {
		return false
	}
	if !s.loaded {
		s.load()
	}
	if s.err != nil || s.pos >= len(s.items) {
		return false
	}
	s.pos++
	return true
}

func (s *sortSet[O]) Value() O { return s.items[s.pos-1] }

func (s *sortSet[O]) Err() error { return s.err }

func (s *sortSet[O]) Contains(o O) (bool, error) { return s.in.Contains(o) }

func (s *sortSet[O]) RetrievalCost() int { return s.in.RetrievalCost() }

func (s *sortSet[O]) MergeCost() int { return s.in.MergeCost() }

func (s *sortSet[O]) Close() error {
	return s.close(func() error {
		s.items = nil
		return closeAll([]ResultSet[O]{s.in})
	})
}

// Collect drains rs into a slice and closes it. On failure no partial result
// is returned; a Close failure is attached to the iteration error.
func Collect[O any](rs ResultSet[O]) ([]O, error) {
	var out []O
	for rs.Next() {
		out = append(out, rs.Value())
	}
	err := AttachRelease(rs.Err(), rs.Close())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count drains rs, closes it and returns the number of objects it yielded.
func Count[O any](rs ResultSet[O]) (int, error) {
	n := 0
	for rs.Next() {
		n++
	}
	if err := AttachRelease(rs.Err(), rs.Close()); err != nil {
		return 0, err
	}
	return n, nil
}

// All adapts rs to a range-over-func iterator. The set is closed when the
// loop ends, including on break. An iteration or close error is yielded last.
//
//	for car, err := range resultset.All(rs) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
func All[O any](rs ResultSet[O]) iter.Seq2[O, error] {
	return func(yield func(O, error) bool) {
		stopped := false
		for rs.Next() {
			if !yield(rs.Value(), nil) {
				stopped = true
				break
			}
		}
		var err error
		if !stopped {
			err = rs.Err()
		}
		err = AttachRelease(err, rs.Close())
		if err != nil && !stopped {
			var zero O
			yield(zero, err)
		}
	}
}

// Package resultset implements lazy, closeable sequences of objects and the
// algebra used to combine them.
//
// A ResultSet is a single-pass pull iterator:
//
//	rs, err := eng.Evaluate(ctx, q, nil)
//	if err != nil {
//	    return err
//	}
//	defer rs.Close()
//
//	for rs.Next() {
//	    use(rs.Value())
//	}
//	if err := rs.Err(); err != nil {
//	    return err
//	}
//
// The owner of a ResultSet must call Close exactly once it is done with it,
// on every exit path. Close is idempotent; every combinator closes all of its
// inputs, including inputs that were never iterated. Closing before the
// sequence is exhausted is cancellation: cursors are released and nothing
// continues in the background.
//
// Iteration under concurrent mutation of the underlying collection is not
// guaranteed consistent.
package resultset

import (
	"errors"
	"iter"
	"math"
	"sync"
)

// ErrContainsUnsupported is returned by Contains when a result set was built
// without a membership test.
var ErrContainsUnsupported = errors.New("resultset: membership test not supported")

// Cost constants used by index implementations and the engine. Lower is cheaper.
const (
	// CostUnknown is the cost of a set whose size or access path is unknown.
	CostUnknown = math.MaxInt32
)

// ResultSet is a lazy sequence of objects produced by an evaluation.
type ResultSet[O any] interface {
	// Next advances to the next object. It returns false when the sequence is
	// exhausted, failed or was closed.
	Next() bool

	// Value returns the current object. Only valid after Next returned true.
	Value() O

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the resources held by the set and its inputs. Calling
	// Close more than once is a no-op returning the first result.
	Close() error

	// Contains reports whether o is a member of the set without advancing
	// iteration.
	Contains(o O) (bool, error)

	// RetrievalCost estimates the cost of producing the set. Lower is cheaper.
	RetrievalCost() int

	// MergeCost estimates the number of objects the set yields. Used to pick
	// the driving set of an intersection.
	MergeCost() int
}

// Config describes a result set built by New.
type Config[O any] struct {
	// Seq produces the objects. A non-nil error stops iteration.
	Seq iter.Seq2[O, error]

	// Contains tests membership. If nil, Contains returns ErrContainsUnsupported.
	Contains func(O) (bool, error)

	// Close is invoked once when the set is closed.
	Close func() error

	RetrievalCost int
	MergeCost     int
}

// New returns a result set that pulls objects from cfg.Seq.
func New[O any](cfg Config[O]) ResultSet[O] {
	s := &seqSet[O]{cfg: cfg}
	if cfg.Seq == nil {
		s.done = true
	}
	return s
}

type seqSet[O any] struct {
	cfg  Config[O]
	next func() (O, error, bool)
	stop func()
	cur  O
	err  error
	done bool
	closer
}

func (s *seqSet[O]) Next() bool {
	if s.done || s.closed() {
		return false
	}
	if s.next == nil {
		s.next, s.stop = iter.Pull2(s.cfg.Seq)
	}
	v, err, ok := s.next()
	if !ok {
		s.done = true
		return false
	}
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	s.cur = v
	return true
}

func (s *seqSet[O]) Value() O { return s.cur }

func (s *seqSet[O]) Err() error { return s.err }

func (s *seqSet[O]) Contains(o O) (bool, error) {
	if s.cfg.Contains == nil {
		return false, ErrContainsUnsupported
	}
	return s.cfg.Contains(o)
}

func (s *seqSet[O]) RetrievalCost() int { return s.cfg.RetrievalCost }

func (s *seqSet[O]) MergeCost() int { return s.cfg.MergeCost }

func (s *seqSet[O]) Close() error {
	return s.close(func() error {
		if s.stop != nil {
			s.stop()
		}
		if s.cfg.Close == nil {
			return nil
		}
		if err := s.cfg.Close(); err != nil {
			return &ReleaseError{Errs: []error{err}}
		}
		return nil
	})
}

// FromSlice returns a result set over items. Membership uses ==.
func FromSlice[O comparable](items []O) ResultSet[O] {
	var (
		once    sync.Once
		members map[O]struct{}
	)
	return New(Config[O]{
		Seq: func(yield func(O, error) bool) {
			for _, o := range items {
				if !yield(o, nil) {
					return
				}
			}
		},
		Contains: func(o O) (bool, error) {
			once.Do(func() {
				members = make(map[O]struct{}, len(items))
				for _, it := range items {
					members[it] = struct{}{}
				}
			})
			_, ok := members[o]
			return ok, nil
		},
		RetrievalCost: 0,
		MergeCost:     len(items),
	})
}

// Empty returns a result set that yields nothing and contains nothing.
func Empty[O any]() ResultSet[O] {
	return New(Config[O]{
		Contains: func(O) (bool, error) { return false, nil },
	})
}

// closer makes Close idempotent.
type closer struct {
	once     sync.Once
	isClosed bool
	err      error
}

func (c *closer) close(fn func() error) error {
	c.once.Do(func() {
		c.isClosed = true
		c.err = fn()
	})
	return c.err
}

func (c *closer) closed() bool { return c.isClosed }

// closeAll closes every set, even when an earlier Close fails, and collects
// the failures into one ReleaseError.
func closeAll[O any](sets []ResultSet[O]) error {
	var errs []error
	for _, rs := range sets {
		if rs == nil {
			continue
		}
		if err := rs.Close(); err != nil {
			var re *ReleaseError
			if errors.As(err, &re) {
				errs = append(errs, re.Errs...)
				continue
			}
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ReleaseError{Errs: errs}
}

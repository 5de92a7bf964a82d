package resultset

// Filter yields the objects of rs for which keep returns true. A keep error
// stops iteration and is reported by Err.
func Filter[O any](rs ResultSet[O], keep func(O) (bool, error)) ResultSet[O] {
	return &filterSet[O]{in: rs, keep: keep}
}

type filterSet[O any] struct {
	in   ResultSet[O]
	keep func(O) (bool, error)
	cur  O
	err  error
	closer
}

func (f *filterSet[O]) Next() bool {
	if f.err != nil || f.closed() {
		return false
	}
	for f.in.Next() {
		o := f.in.Value()
		ok, err := f.keep(o)
		if err != nil {
			f.err = err
			return false
		}
		if ok {
			f.cur = o
			return true
		}
	}
	f.err = f.in.Err()
	return false
}

func (f *filterSet[O]) Value() O { return f.cur }

func (f *filterSet[O]) Err() error { return f.err }

func (f *filterSet[O]) Contains(o O) (bool, error) {
	ok, err := f.in.Contains(o)
	if err != nil || !ok {
		return false, err
	}
	return f.keep(o)
}

func (f *filterSet[O]) RetrievalCost() int { return f.in.RetrievalCost() }

func (f *filterSet[O]) MergeCost() int { return f.in.MergeCost() }

func (f *filterSet[O]) Close() error {
	return f.close(func() error { return closeAll([]ResultSet[O]{f.in}) })
}

// Intersect yields the objects of the first set that every other set
// contains, in the first set's order. The first set drives iteration and the
// others are only probed with Contains; callers put the smallest set first.
//
// Intersect of no sets is empty.
func Intersect[O any](sets ...ResultSet[O]) ResultSet[O] {
	if len(sets) == 0 {
		return Empty[O]()
	}
	if len(sets) == 1 {
		return sets[0]
	}
	probes := sets[1:]
	is := &filterSet[O]{
		in: sets[0],
		keep: func(o O) (bool, error) {
			return containedInAll(probes, o)
		},
	}
	return &multiClose[O]{ResultSet: is, inputs: sets}
}

func containedInAll[O any](sets []ResultSet[O], o O) (bool, error) {
	for _, rs := range sets {
		ok, err := rs.Contains(o)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Difference yields the objects of a that b does not contain, in a's order.
func Difference[O any](a, b ResultSet[O]) ResultSet[O] {
	ds := &filterSet[O]{
		in: a,
		keep: func(o O) (bool, error) {
			ok, err := b.Contains(o)
			return !ok && err == nil, err
		},
	}
	return &multiClose[O]{ResultSet: ds, inputs: []ResultSet[O]{a, b}}
}

// multiClose closes every input of a combinator exactly once.
type multiClose[O any] struct {
	ResultSet[O]
	inputs []ResultSet[O]
	closer
}

func (m *multiClose[O]) Close() error {
	return m.close(func() error { return closeAll(m.inputs) })
}

// Union yields the objects of every set in input order. With dedup, each
// object is yielded at most once, at its first occurrence.
func Union[O comparable](dedup bool, sets ...ResultSet[O]) ResultSet[O] {
	if len(sets) == 1 && !dedup {
		return sets[0]
	}
	u := &unionSet[O]{sets: sets}
	if dedup {
		u.seen = make(map[O]struct{})
	}
	return u
}

type unionSet[O comparable] struct {
	sets []ResultSet[O]
	pos  int
	seen map[O]struct{}
	cur  O
	err  error
	closer
}

func (u *unionSet[O]) Next() bool {
	if u.err != nil || u.closed() {
		return false
	}
	for u.pos < len(u.sets) {
		rs := u.sets[u.pos]
		for rs.Next() {
			o := rs.Value()
			if u.seen != nil {
				if _, dup := u.seen[o]; dup {
					continue
				}
				u.seen[o] = struct{}{}
			}
			u.cur = o
			return true
		}
		if err := rs.Err(); err != nil {
			u.err = err
			return false
		}
		u.pos++
	}
	return false
}

func (u *unionSet[O]) Value() O { return u.cur }

func (u *unionSet[O]) Err() error { return u.err }

func (u *unionSet[O]) Contains(o O) (bool, error) {
	for _, rs := range u.sets {
		ok, err := rs.Contains(o)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (u *unionSet[O]) RetrievalCost() int {
	total := 0
	for _, rs := range u.sets {
		total = addCost(total, rs.RetrievalCost())
	}
	return total
}

func (u *unionSet[O]) MergeCost() int {
	total := 0
	for _, rs := range u.sets {
		total = addCost(total, rs.MergeCost())
	}
	return total
}

func (u *unionSet[O]) Close() error {
	return u.close(func() error { return closeAll(u.sets) })
}

func addCost(a, b int) int {
	if a >= CostUnknown-b {
		return CostUnknown
	}
	return a + b
}

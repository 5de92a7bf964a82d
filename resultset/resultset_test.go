package resultset

import (
	"cmp"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tracked wraps a set and counts Close calls.
type tracked struct {
	ResultSet[int]
	closes   int
	closeErr error
}

func track(items ...int) *tracked {
	return &tracked{ResultSet: FromSlice(items)}
}

func (t *tracked) Close() error {
	t.closes++
	_ = t.ResultSet.Close()
	return t.closeErr
}

func failing(after int, err error, items ...int) ResultSet[int] {
	return New(Config[int]{
		Seq: func(yield func(int, error) bool) {
			for i, v := range items {
				if i == after {
					yield(0, err)
					return
				}
				if !yield(v, nil) {
					return
				}
			}
		},
		Contains: func(int) (bool, error) { return false, err },
	})
}

func TestFromSlice(t *testing.T) {
	rs := FromSlice([]int{3, 1, 2})
	assert.Equal(t, 3, rs.MergeCost())

	ok, err := rs.Contains(1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rs.Contains(9)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := Collect(rs)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, got)

	assert.False(t, rs.Next(), "closed set yields nothing")
}

func TestEmpty(t *testing.T) {
	rs := Empty[string]()
	assert.False(t, rs.Next())
	require.NoError(t, rs.Err())
	ok, err := rs.Contains("x")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, rs.Close())
}

func TestNewWithoutContains(t *testing.T) {
	rs := New(Config[int]{})
	_, err := rs.Contains(1)
	assert.ErrorIs(t, err, ErrContainsUnsupported)
}

func TestIntersect(t *testing.T) {
	a, b, c := track(1, 2, 3, 4, 5), track(5, 4, 2), track(2, 5, 9)

	rs := Intersect[int](a, b, c)
	got, err := Collect(rs)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, got, "keeps the driving set's order")
	assert.LessOrEqual(t, len(got), 3)

	for _, in := range []*tracked{a, b, c} {
		assert.Equal(t, 1, in.closes)
	}

	ok, err := Intersect[int](FromSlice([]int{1, 2}), FromSlice([]int{2})).Contains(2)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, Intersect[int]().Next())
}

func TestUnion(t *testing.T) {
	t.Run("dedup", func(t *testing.T) {
		a, b := track(1, 2, 3), track(3, 4, 1)
		got, err := Collect(Union[int](true, a, b))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4}, got, "first encounter order")
		assert.Equal(t, 1, a.closes)
		assert.Equal(t, 1, b.closes)
	})

	t.Run("no dedup", func(t *testing.T) {
		got, err := Collect(Union[int](false, FromSlice([]int{1, 2}), FromSlice([]int{2, 3})))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 2, 3}, got)
	})

	t.Run("contains and costs", func(t *testing.T) {
		u := Union[int](true, FromSlice([]int{1}), FromSlice([]int{2, 3}))
		defer u.Close()

		ok, err := u.Contains(3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, u.MergeCost())
	})

	t.Run("unknown cost saturates", func(t *testing.T) {
		big := New(Config[int]{MergeCost: CostUnknown, RetrievalCost: CostUnknown})
		u := Union[int](true, big, FromSlice([]int{1}))
		assert.Equal(t, CostUnknown, u.MergeCost())
		assert.Equal(t, CostUnknown, u.RetrievalCost())
	})
}

func TestAlgebraLaws(t *testing.T) {
	universe := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	even := []int{0, 2, 4, 6, 8}
	small := []int{1, 2, 3}

	t.Run("intersection bounded by smaller input", func(t *testing.T) {
		got, err := Collect(Intersect[int](FromSlice(even), FromSlice(small)))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), min(len(even), len(small)))
		assert.Equal(t, []int{2}, got)
	})

	t.Run("union bounded and unique", func(t *testing.T) {
		got, err := Collect(Union[int](true, FromSlice(even), FromSlice(small)))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), len(even)+len(small))
		seen := map[int]bool{}
		for _, v := range got {
			assert.False(t, seen[v], "duplicate %d", v)
			seen[v] = true
		}
	})

	t.Run("partition", func(t *testing.T) {
		diff, err := Collect(Difference(FromSlice(universe), FromSlice(even)))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3, 5, 7, 9}, diff)

		all, err := Collect(Union[int](true, FromSlice(diff), FromSlice(even)))
		require.NoError(t, err)
		assert.ElementsMatch(t, universe, all)
	})
}

func TestCloseDiscipline(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		a, b := track(1, 2), track(2)
		rs := Difference[int](a, b)
		require.NoError(t, rs.Close())
		require.NoError(t, rs.Close())
		assert.Equal(t, 1, a.closes)
		assert.Equal(t, 1, b.closes)
	})

	t.Run("partial iteration closes every input", func(t *testing.T) {
		a, b, c := track(1, 2, 3), track(1, 2, 3), track(7)
		rs := Union[int](true, Intersect[int](a, b), c)
		require.True(t, rs.Next())
		require.NoError(t, rs.Close())
		for _, in := range []*tracked{a, b, c} {
			assert.Equal(t, 1, in.closes)
		}
	})

	t.Run("error mid-iteration", func(t *testing.T) {
		boom := errors.New("boom")
		other := track(1, 2, 3)
		rs := Union[int](true, failing(1, boom, 10, 11, 12), other)

		got, err := Collect(rs)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, got, "no partial results")
		assert.Equal(t, 1, other.closes)
	})

	t.Run("release error is attached not substituted", func(t *testing.T) {
		boom := errors.New("boom")
		leak := errors.New("leak")
		bad := track(1)
		bad.closeErr = leak

		_, err := Collect(Union[int](true, failing(0, boom, 1), bad))
		require.Error(t, err)
		assert.Equal(t, "boom", err.Error())
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, leak)

		re, ok := Released(err)
		require.True(t, ok)
		assert.Len(t, re.Errs, 1)
	})

	t.Run("release error alone", func(t *testing.T) {
		leak := errors.New("leak")
		a, b := track(1), track(2)
		a.closeErr = leak
		b.closeErr = leak

		_, err := Collect(Union[int](true, a, b))
		var re *ReleaseError
		require.ErrorAs(t, err, &re)
		assert.Len(t, re.Errs, 2)
	})

	t.Run("close stops the producer", func(t *testing.T) {
		produced := 0
		stopped := false
		rs := New(Config[int]{
			Seq: func(yield func(int, error) bool) {
				defer func() { stopped = true }()
				for i := 0; ; i++ {
					produced++
					if !yield(i, nil) {
						return
					}
				}
			},
		})
		require.True(t, rs.Next())
		require.True(t, rs.Next())
		require.NoError(t, rs.Close())
		assert.True(t, stopped)
		assert.Equal(t, 2, produced)
		assert.False(t, rs.Next())
	})

	t.Run("config close failure", func(t *testing.T) {
		leak := errors.New("leak")
		rs := New(Config[int]{Close: func() error { return leak }})
		err := rs.Close()
		assert.ErrorIs(t, err, leak)
		assert.Same(t, err, rs.Close())
	})
}

func TestFilter(t *testing.T) {
	rs := Filter(FromSlice([]int{1, 2, 3, 4}), func(v int) (bool, error) { return v%2 == 0, nil })
	ok, err := rs.Contains(3)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := Collect(rs)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, got)
}

func TestSort(t *testing.T) {
	type pair struct{ k, seq int }
	in := []pair{{2, 0}, {1, 1}, {2, 2}, {1, 3}, {0, 4}}

	byKey := func(a, b pair) (int, error) { return cmp.Compare(a.k, b.k), nil }
	got, err := Collect(Sort(FromSlice(in), byKey))
	require.NoError(t, err)
	assert.Equal(t, []pair{{0, 4}, {1, 1}, {1, 3}, {2, 0}, {2, 2}}, got)

	t.Run("comparison error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Collect(Sort(FromSlice(in), func(pair, pair) (int, error) { return 0, boom }))
		assert.ErrorIs(t, err, boom)
	})
}

func TestCountAndAll(t *testing.T) {
	n, err := Count(FromSlice([]int{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Run("break closes", func(t *testing.T) {
		src := track(1, 2, 3)
		var got []int
		for v, err := range All[int](src) {
			require.NoError(t, err)
			got = append(got, v)
			if v == 2 {
				break
			}
		}
		assert.Equal(t, []int{1, 2}, got)
		assert.Equal(t, 1, src.closes)
	})

	t.Run("error yielded last", func(t *testing.T) {
		boom := errors.New("boom")
		next, stop := iter.Pull2(All(failing(1, boom, 5, 6)))
		defer stop()

		v, err, ok := next()
		require.True(t, ok)
		require.NoError(t, err)
		assert.Equal(t, 5, v)

		_, err, ok = next()
		require.True(t, ok)
		assert.ErrorIs(t, err, boom)

		_, _, ok = next()
		assert.False(t, ok)
	})
}

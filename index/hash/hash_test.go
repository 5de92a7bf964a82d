package hash

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/index"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
	"github.com/hupe1980/cqgo/testutil"
)

type car = testutil.Car

func retrieve(t *testing.T, idx index.Index[*car], q query.Leaf[*car]) []*car {
	t.Helper()
	rs, err := idx.Retrieve(context.Background(), q, nil)
	require.NoError(t, err)
	got, err := resultset.Collect(rs)
	require.NoError(t, err)
	return got
}

func TestKeyStatistics(t *testing.T) {
	ctx := context.Background()
	idx := New("model", testutil.CarModel)

	t.Run("empty", func(t *testing.T) {
		keys, err := idx.DistinctKeys(ctx, nil)
		require.NoError(t, err)
		assert.False(t, keys.Next())
		require.NoError(t, keys.Close())
	})

	require.NoError(t, idx.Add(ctx, []*car{
		{ID: 1, Model: "a"},
		{ID: 2, Model: "a"},
		{ID: 3, Model: "b"},
	}))

	for key, want := range map[string]int{"a": 2, "b": 1, "c": 0} {
		n, err := idx.CountForKey(ctx, key, nil)
		require.NoError(t, err)
		assert.Equal(t, want, n, "count for %q", key)
	}

	rs, err := idx.DistinctKeys(ctx, nil)
	require.NoError(t, err)
	keys, err := resultset.Collect(rs)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	cars := []*car{
		{ID: 1, Model: "Focus", Features: []string{"gps", "radio"}},
		{ID: 2, Model: "Civic", Features: []string{"gps"}},
		{ID: 3, Model: "Focus"},
	}
	models := New("model", testutil.CarModel)
	features := New("features", testutil.CarFeatures)
	require.NoError(t, models.Add(ctx, cars))
	require.NoError(t, features.Add(ctx, cars))

	assert.Equal(t, []*car{cars[0], cars[2]}, retrieve(t, models, query.Equal(testutil.CarModel, "Focus")))
	assert.Empty(t, retrieve(t, models, query.Equal(testutil.CarModel, "Prius")))
	assert.ElementsMatch(t, cars, retrieve(t, models, query.In(testutil.CarModel, "Civic", "Focus", "Prius")))
	assert.ElementsMatch(t, cars[:2], retrieve(t, features, query.Has(testutil.CarFeatures)))

	t.Run("multi-valued in deduplicates", func(t *testing.T) {
		got := retrieve(t, features, query.In(testutil.CarFeatures, "gps", "radio"))
		assert.ElementsMatch(t, cars[:2], got)
	})

	t.Run("merge cost is bucket size", func(t *testing.T) {
		rs, err := models.Retrieve(ctx, query.Equal(testutil.CarModel, "Focus"), nil)
		require.NoError(t, err)
		defer rs.Close()
		assert.Equal(t, 2, rs.MergeCost())
		assert.Equal(t, index.CostHash, rs.RetrievalCost())

		ok, err := rs.Contains(cars[1])
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.False(t, models.Supports(query.GreaterThan(testutil.CarModel, "A", false)))
		assert.False(t, models.Supports(query.Equal(testutil.CarColor, "red")))

		_, err := models.Retrieve(ctx, query.GreaterThan(testutil.CarModel, "A", false), nil)
		assert.ErrorIs(t, err, index.ErrUnsupportedPredicate)
	})

	t.Run("not ready", func(t *testing.T) {
		models.SetState(index.StateBuilding)
		defer models.SetState(index.StateReady)

		_, err := models.Retrieve(ctx, query.Equal(testutil.CarModel, "Focus"), nil)
		assert.ErrorIs(t, err, index.ErrIndexState)
	})
}

func TestMutation(t *testing.T) {
	ctx := context.Background()
	a, b := &car{ID: 1, Model: "x"}, &car{ID: 2, Model: "x"}
	idx := New("model", testutil.CarModel)

	require.NoError(t, idx.Add(ctx, []*car{a, b}))
	assert.Equal(t, 2, idx.Len())

	require.NoError(t, idx.Remove(ctx, []*car{a}))
	assert.Equal(t, []*car{b}, retrieve(t, idx, query.Equal(testutil.CarModel, "x")))

	require.NoError(t, idx.Remove(ctx, []*car{b, {ID: 99, Model: "y"}}))
	n, err := idx.CountForKey(ctx, "x", nil)
	require.NoError(t, err)
	assert.Zero(t, n, "empty buckets are dropped")

	require.NoError(t, idx.Add(ctx, []*car{a}))
	require.NoError(t, idx.Clear(ctx))
	assert.Zero(t, idx.Len())

	t.Run("accessor failure leaves index untouched", func(t *testing.T) {
		boom := errors.New("boom")
		failing := attribute.NewFunc(attribute.ID{ObjectType: "Car", Name: "failing"},
			func(c *car) (string, error) {
				if c.ID == 2 {
					return "", boom
				}
				return c.Model, nil
			},
			func(x, y string) int { return len(x) - len(y) },
		)
		f := New("failing", failing)
		err := f.Add(ctx, []*car{a, b})
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, attribute.ErrAccess)
		assert.Zero(t, f.Len())
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, idx.Add(cctx, []*car{a}), context.Canceled)
	})
}

func TestIndexScanEquivalence(t *testing.T) {
	ctx := context.Background()
	cars := testutil.Cars(testutil.NewRNG(42), 300)

	models := New("model", testutil.CarModel)
	features := New("features", testutil.CarFeatures)
	require.NoError(t, models.Add(ctx, cars))
	require.NoError(t, features.Add(ctx, cars))

	cases := []struct {
		idx index.Index[*car]
		q   query.Leaf[*car]
	}{
		{models, query.Equal(testutil.CarModel, "Focus")},
		{models, query.In(testutil.CarModel, "Civic", "Prius", "Nope")},
		{models, query.Has(testutil.CarModel)},
		{features, query.Equal(testutil.CarFeatures, "gps")},
		{features, query.In(testutil.CarFeatures, "gps", "turbo", "hybrid")},
		{features, query.Has(testutil.CarFeatures)},
	}

	for _, c := range cases {
		t.Run(c.q.String(), func(t *testing.T) {
			want, err := testutil.Scan[*car](cars, c.q)
			require.NoError(t, err)

			got := retrieve(t, c.idx, c.q)
			assert.ElementsMatch(t, want, got)
			assert.Len(t, testutil.SetOf(got...), len(got), "no duplicates")
		})
	}

	t.Run("unkeyed attributes", func(t *testing.T) {
		objs := []*car{
			{ID: 1, Color: "Red", Rating: math.NaN()},
			{ID: 2, Color: "red", Rating: 4.5},
			{ID: 3, Color: "blue", Rating: math.NaN()},
		}
		fold := New("colorFold", testutil.CarColorFold)
		rating := New("rating", testutil.CarRating)
		require.NoError(t, fold.Add(ctx, objs))
		require.NoError(t, rating.Add(ctx, objs))

		for _, c := range []struct {
			idx index.Index[*car]
			q   query.Leaf[*car]
			n   int
		}{
			{fold, query.Equal(testutil.CarColorFold, "RED"), 2},
			{fold, query.In(testutil.CarColorFold, "RED", "Blue"), 3},
			{rating, query.Equal(testutil.CarRating, math.NaN()), 2},
		} {
			want, err := testutil.Scan[*car](objs, c.q)
			require.NoError(t, err)
			assert.Len(t, want, c.n)
			assert.False(t, c.idx.Supports(c.q), "%s needs a scan", c.q)
		}

		has := query.Has(testutil.CarColorFold)
		require.True(t, fold.Supports(has))
		assert.ElementsMatch(t, objs, retrieve(t, fold, has))

		require.NoError(t, rating.Remove(ctx, []*car{objs[0], objs[2]}))
		rs, err := rating.DistinctKeys(ctx, nil)
		require.NoError(t, err)
		keys, err := resultset.Collect(rs)
		require.NoError(t, err)
		assert.Equal(t, []float64{4.5}, keys)
		assert.Equal(t, []*car{objs[1]}, retrieve(t, rating, query.Has(testutil.CarRating)))
	})
}

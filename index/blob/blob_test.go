package blob

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/blobstore"
	"github.com/hupe1980/cqgo/codec"
	"github.com/hupe1980/cqgo/index"
	ibitmap "github.com/hupe1980/cqgo/internal/bitmap"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
	"github.com/hupe1980/cqgo/testutil"
)

type car = testutil.Car

// countingStore counts reads and can block them until released.
type countingStore struct {
	blobstore.Store
	gets atomic.Int64
	gate chan struct{}
}

func (s *countingStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.gets.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.Store.Get(ctx, name)
}

// build writes an index over cars and returns the table resolving it.
func build[A comparable](t *testing.T, store blobstore.Store, prefix string, attr attribute.Attribute[*car, A], cars []*car, optFns ...Option) *Table[*car] {
	t.Helper()
	ords := make(map[*car]uint32, len(cars))
	postings := make(map[A]*ibitmap.Bitmap)
	all := ibitmap.New()
	for i, c := range cars {
		ord := uint32(i)
		ords[c] = ord
		vs, err := attr.Values(c)
		require.NoError(t, err)
		for _, v := range vs {
			bm, ok := postings[v]
			if !ok {
				bm = ibitmap.New()
				postings[v] = bm
			}
			bm.Add(ord)
			all.Add(ord)
		}
	}
	require.NoError(t, Write(context.Background(), store, prefix, prefix, attr, postings, all, optFns...))
	return NewTable(ords)
}

func TestWriteOpen(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	cars := []*car{
		{ID: 1, Model: "Focus", Features: []string{"gps", "radio"}},
		{ID: 2, Model: "Civic", Features: []string{"gps"}},
		{ID: 3, Model: "Focus"},
	}
	table := build(t, store, "features", testutil.CarFeatures, cars)

	names, err := store.List(ctx, "features/")
	require.NoError(t, err)
	assert.Equal(t, []string{"features/MANIFEST", "features/all", "features/postings/000000", "features/postings/000001"}, names)

	idx, err := Open(ctx, store, "features", testutil.CarFeatures, table)
	require.NoError(t, err)
	assert.Equal(t, "features", idx.Name())
	assert.Equal(t, 2, idx.Len())

	m := idx.Manifest()
	assert.Equal(t, "Car.features", m.Attribute)
	assert.Equal(t, "lz4", m.Compression)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, "gps", m.Entries[0].Key)
	assert.Equal(t, 2, m.Entries[0].Count)

	n, err := idx.CountForKey(ctx, "radio", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = idx.CountForKey(ctx, "turbo", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, idx.Cached(), "statistics come from the manifest")

	rs, err := idx.DistinctKeys(ctx, nil)
	require.NoError(t, err)
	keys, err := resultset.Collect(rs)
	require.NoError(t, err)
	assert.Equal(t, []string{"gps", "radio"}, keys)

	rs2, err := idx.Retrieve(ctx, query.Equal(testutil.CarFeatures, "gps"), nil)
	require.NoError(t, err)
	assert.Equal(t, index.CostBlob, rs2.RetrievalCost())
	assert.Equal(t, 2, rs2.MergeCost())
	ok, err := rs2.Contains(cars[2])
	require.NoError(t, err)
	assert.False(t, ok)
	got, err := resultset.Collect(rs2)
	require.NoError(t, err)
	assert.Equal(t, cars[:2], got)

	t.Run("wrong attribute", func(t *testing.T) {
		_, err := Open(ctx, store, "features", testutil.CarModel, table)
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Open(ctx, store, "nope", testutil.CarFeatures, table)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.False(t, idx.Supports(query.GreaterThan(testutil.CarFeatures, "a", true)))
		_, err := idx.Retrieve(ctx, query.GreaterThan(testutil.CarFeatures, "a", true), nil)
		assert.ErrorIs(t, err, index.ErrUnsupportedPredicate)
	})
}

func TestCodecsAndCompression(t *testing.T) {
	ctx := context.Background()
	cars := testutil.Cars(testutil.NewRNG(3), 50)

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		for _, ct := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
			t.Run(c.Name()+"/"+ct.String(), func(t *testing.T) {
				store := blobstore.NewMemoryStore()
				table := build(t, store, "model", testutil.CarModel, cars, WithCodec(c), WithCompression(ct))

				idx, err := Open(ctx, store, "model", testutil.CarModel, table)
				require.NoError(t, err)

				q := query.In(testutil.CarModel, "Focus", "Civic")
				want, err := testutil.Scan[*car](cars, q)
				require.NoError(t, err)

				rs, err := idx.Retrieve(ctx, q, nil)
				require.NoError(t, err)
				got, err := resultset.Collect(rs)
				require.NoError(t, err)
				assert.ElementsMatch(t, want, got)
			})
		}
	}
}

func TestParseCompression(t *testing.T) {
	for _, ct := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(ct.String())
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}

	_, err := ParseCompression("snappy")
	require.Error(t, err)
}

func TestCorrupt(t *testing.T) {
	ctx := context.Background()
	cars := []*car{{ID: 1, Model: "a"}}

	t.Run("manifest header", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "m/MANIFEST", []byte("garbage")))
		_, err := ReadManifest[string](ctx, store, "m")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("unknown codec", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "m/MANIFEST", []byte("gob\n{}")))
		_, err := ReadManifest[string](ctx, store, "m")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("posting list", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		table := build(t, store, "model", testutil.CarModel, cars)
		require.NoError(t, store.Put(ctx, "model/postings/000000", []byte{0xff}))

		idx, err := Open(ctx, store, "model", testutil.CarModel, table)
		require.NoError(t, err)
		_, err = idx.Retrieve(ctx, query.Equal(testutil.CarModel, "a"), nil)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestCacheAndSingleflight(t *testing.T) {
	ctx := context.Background()
	cars := testutil.Cars(testutil.NewRNG(5), 100)
	store := &countingStore{Store: blobstore.NewMemoryStore()}
	table := build(t, store, "model", testutil.CarModel, cars)

	idx, err := Open(ctx, store, "model", testutil.CarModel, table, WithCacheSize(2))
	require.NoError(t, err)
	base := store.gets.Load()

	store.gate = make(chan struct{})
	q := query.Equal(testutil.CarModel, "Focus")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := idx.Retrieve(ctx, q, nil)
			if assert.NoError(t, err) {
				_ = rs.Close()
			}
		}()
	}
	close(store.gate)
	wg.Wait()
	store.gate = nil

	assert.LessOrEqual(t, store.gets.Load()-base, int64(8))
	reads := store.gets.Load()

	rs, err := idx.Retrieve(ctx, q, nil)
	require.NoError(t, err)
	require.NoError(t, rs.Close())
	assert.Equal(t, reads, store.gets.Load(), "served from cache")
	assert.Equal(t, 1, idx.Cached())

	for _, m := range testutil.Models() {
		rs, err := idx.Retrieve(ctx, query.Equal(testutil.CarModel, m), nil)
		require.NoError(t, err)
		require.NoError(t, rs.Close())
	}
	assert.Equal(t, 2, idx.Cached(), "bounded by cache size")
}

func TestCancelledLoad(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: blobstore.NewMemoryStore()}
	table := build(t, store, "model", testutil.CarModel, []*car{{ID: 1, Model: "a"}})

	idx, err := Open(ctx, store, "model", testutil.CarModel, table)
	require.NoError(t, err)

	store.gate = make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = idx.Retrieve(cctx, query.Equal(testutil.CarModel, "a"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	close(store.gate)
}

func TestIndexScanEquivalence(t *testing.T) {
	ctx := context.Background()
	cars := testutil.Cars(testutil.NewRNG(42), 300)
	store := blobstore.NewMemoryStore()

	models := build(t, store, "model", testutil.CarModel, cars)
	features := build(t, store, "features", testutil.CarFeatures, cars)

	mi, err := Open(ctx, store, "model", testutil.CarModel, models)
	require.NoError(t, err)
	fi, err := Open(ctx, store, "features", testutil.CarFeatures, features)
	require.NoError(t, err)

	cases := []struct {
		idx index.Index[*car]
		q   query.Leaf[*car]
	}{
		{mi, query.Equal(testutil.CarModel, "Focus")},
		{mi, query.In(testutil.CarModel, "Civic", "Prius", "Nope")},
		{mi, query.Has(testutil.CarModel)},
		{fi, query.Equal(testutil.CarFeatures, "gps")},
		{fi, query.In(testutil.CarFeatures, "gps", "turbo", "hybrid")},
		{fi, query.Has(testutil.CarFeatures)},
	}

	for _, c := range cases {
		t.Run(c.q.String(), func(t *testing.T) {
			want, err := testutil.Scan[*car](cars, c.q)
			require.NoError(t, err)

			rs, err := c.idx.Retrieve(ctx, c.q, nil)
			require.NoError(t, err)
			got, err := resultset.Collect(rs)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, got)
			assert.Len(t, testutil.SetOf(got...), len(got), "no duplicates")
		})
	}

	t.Run("unkeyed attributes", func(t *testing.T) {
		objs := []*car{{ID: 1, Color: "Red"}, {ID: 2, Color: "red"}, {ID: 3, Color: "blue"}}
		table := build(t, store, "colorFold", testutil.CarColorFold, objs)
		fold, err := Open(ctx, store, "colorFold", testutil.CarColorFold, table)
		require.NoError(t, err)

		for _, q := range []query.Leaf[*car]{
			query.Equal(testutil.CarColorFold, "RED"),
			query.In(testutil.CarColorFold, "RED", "Blue"),
		} {
			want, err := testutil.Scan[*car](objs, q)
			require.NoError(t, err)
			assert.NotEmpty(t, want)
			assert.False(t, fold.Supports(q), "%s needs a scan", q)
		}

		has := query.Has(testutil.CarColorFold)
		require.True(t, fold.Supports(has))
		rs, err := fold.Retrieve(ctx, has, nil)
		require.NoError(t, err)
		got, err := resultset.Collect(rs)
		require.NoError(t, err)
		assert.ElementsMatch(t, objs, got)
	})
}

func TestTable(t *testing.T) {
	a, b := &car{ID: 1}, &car{ID: 2}
	table := NewTable(map[*car]uint32{a: 0, b: 4})
	assert.Equal(t, 2, table.Len())

	o, ok := table.Object(4)
	assert.True(t, ok)
	assert.Same(t, b, o)

	_, ok = table.Object(2)
	assert.False(t, ok, "gap")
	_, ok = table.Object(10)
	assert.False(t, ok)

	ord, ok := table.Ordinal(a)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), ord)
	_, ok = table.Ordinal(&car{ID: 1})
	assert.False(t, ok)
}

// Package blob implements a read-only index whose posting lists live in a
// blobstore.Store.
//
// Layout below a prefix:
//
//	<prefix>/MANIFEST           codec name, newline, encoded Manifest
//	<prefix>/all                objects with at least one value
//	<prefix>/postings/<n>       one posting list per key
//
// Posting lists are roaring bitmaps of object ordinals framed by
// internal/compress. Ordinals are mapped back to objects by a Resolver, so
// the blobs never hold objects themselves.
//
// Posting lists are loaded on demand. Concurrent loads of the same blob are
// collapsed into one read and decoded lists are kept in an LRU cache.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/blobstore"
	"github.com/hupe1980/cqgo/codec"
	"github.com/hupe1980/cqgo/index"
	ibitmap "github.com/hupe1980/cqgo/internal/bitmap"
	"github.com/hupe1980/cqgo/internal/compress"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

// ErrCorrupt is returned when stored index data cannot be decoded.
var ErrCorrupt = errors.New("blob index: corrupt data")

// Manifest describes a stored index.
type Manifest[A any] struct {
	Name        string     `json:"name"`
	Attribute   string     `json:"attribute"`
	Compression string     `json:"compression"`
	Objects     int        `json:"objects"`
	Entries     []Entry[A] `json:"entries"`
}

// Entry is one key of a stored index.
type Entry[A any] struct {
	Key   A      `json:"key"`
	Blob  string `json:"blob"`
	Count int    `json:"count"`
}

// Options configures writing and opening blob indexes.
type Options struct {
	// Codec encodes the manifest on Write. Open reads the codec name from
	// the manifest. Defaults to codec.Default.
	Codec codec.Codec

	// Compression frames posting lists on Write. Defaults to CompressionLZ4.
	Compression Compression

	// CacheSize is the number of decoded posting lists kept in memory.
	// Defaults to 128.
	CacheSize int
}

// Compression selects the codec framing stored posting lists.
type Compression = compress.Type

const (
	// CompressionNone stores posting lists raw.
	CompressionNone = compress.None
	// CompressionLZ4 favours decode speed.
	CompressionLZ4 = compress.LZ4
	// CompressionZSTD favours ratio.
	CompressionZSTD = compress.ZSTD
)

// ParseCompression returns the Compression named s ("none", "lz4" or "zstd").
func ParseCompression(s string) (Compression, error) { return compress.Parse(s) }

// Option configures Options.
type Option func(o *Options)

// WithCodec sets the manifest codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) {
		o.Codec = c
	}
}

// WithCompression sets the posting list compression.
func WithCompression(t Compression) Option {
	return func(o *Options) {
		o.Compression = t
	}
}

// WithCacheSize sets the posting list cache size.
func WithCacheSize(n int) Option {
	return func(o *Options) {
		o.CacheSize = n
	}
}

func applyOptions(optFns []Option) Options {
	opts := Options{
		Codec:       codec.Default,
		Compression: CompressionLZ4,
		CacheSize:   128,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

func manifestName(prefix string) string { return prefix + "/MANIFEST" }

func allName(prefix string) string { return prefix + "/all" }

// Write stores postings below prefix. all holds every ordinal with at least
// one value. Keys are written in ascending order under attr's ordering.
func Write[O any, A comparable](ctx context.Context, store blobstore.Store, prefix, name string, attr attribute.Attribute[O, A], postings map[A]*ibitmap.Bitmap, all *ibitmap.Bitmap, optFns ...Option) error {
	keys := make([]A, 0, len(postings))
	for k := range postings {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, attr.Compare)

	opts := applyOptions(optFns)
	m := Manifest[A]{
		Name:        name,
		Attribute:   attr.ID().String(),
		Compression: opts.Compression.String(),
		Objects:     all.Cardinality(),
		Entries:     make([]Entry[A], 0, len(keys)),
	}

	if err := putBitmap(ctx, store, allName(prefix), all, opts.Compression); err != nil {
		return err
	}
	for i, k := range keys {
		bm := postings[k]
		blobName := fmt.Sprintf("%s/postings/%06d", prefix, i)
		if err := putBitmap(ctx, store, blobName, bm, opts.Compression); err != nil {
			return err
		}
		m.Entries = append(m.Entries, Entry[A]{Key: k, Blob: blobName, Count: bm.Cardinality()})
	}

	payload, err := opts.Codec.Marshal(m)
	if err != nil {
		return err
	}
	data := append([]byte(opts.Codec.Name()+"\n"), payload...)
	// The manifest goes last; a partially written index has none.
	return store.Put(ctx, manifestName(prefix), data)
}

func putBitmap(ctx context.Context, store blobstore.Store, name string, bm *ibitmap.Bitmap, t compress.Type) error {
	raw, err := bm.MarshalBinary()
	if err != nil {
		return err
	}
	block, err := compress.Encode(raw, t)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, block)
}

// ReadManifest loads the manifest stored below prefix.
func ReadManifest[A any](ctx context.Context, store blobstore.Store, prefix string) (*Manifest[A], error) {
	data, err := store.Get(ctx, manifestName(prefix))
	if err != nil {
		return nil, err
	}
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		return nil, fmt.Errorf("%w: manifest header", ErrCorrupt)
	}
	c, err := codec.Lookup(string(data[:nl]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	var m Manifest[A]
	if err := c.Unmarshal(data[nl+1:], &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &m, nil
}

// Index answers Equal, In and Has from stored posting lists.
//
// It is safe for concurrent use.
type Index[O comparable, A comparable] struct {
	index.Base[O, A]

	store    blobstore.Store
	prefix   string
	manifest *Manifest[A]
	keys     map[A]int
	resolver Resolver[O]

	cache *lru.Cache[string, *ibitmap.Bitmap]
	group singleflight.Group
}

var (
	_ index.Index[int]              = (*Index[int, int])(nil)
	_ index.KeyStatistics[int, int] = (*Index[int, int])(nil)
)

// Open opens the index stored below prefix. attr must be the attribute the
// index was written for.
func Open[O, A comparable](ctx context.Context, store blobstore.Store, prefix string, attr attribute.Attribute[O, A], resolver Resolver[O], optFns ...Option) (*Index[O, A], error) {
	m, err := ReadManifest[A](ctx, store, prefix)
	if err != nil {
		return nil, err
	}
	if m.Attribute != attr.ID().String() {
		return nil, fmt.Errorf("blob index %q: built for %s, not %s", m.Name, m.Attribute, attr.ID())
	}

	opts := applyOptions(optFns)
	cache, err := lru.New[string, *ibitmap.Bitmap](max(opts.CacheSize, 1))
	if err != nil {
		return nil, err
	}

	idx := &Index[O, A]{
		store:    store,
		prefix:   prefix,
		manifest: m,
		keys:     make(map[A]int, len(m.Entries)),
		resolver: resolver,
		cache:    cache,
	}
	for i, e := range m.Entries {
		idx.keys[e.Key] = i
	}
	idx.Init(m.Name, attr)
	return idx, nil
}

// Manifest returns the manifest the index was opened from.
func (idx *Index[O, A]) Manifest() *Manifest[A] { return idx.manifest }

// Len returns the number of objects with at least one value.
func (idx *Index[O, A]) Len() int { return idx.manifest.Objects }

// RetrievalCost returns index.CostBlob.
func (idx *Index[O, A]) RetrievalCost() int { return index.CostBlob }

// Supports reports whether q is a Has predicate on the attribute, or an Equal
// or In predicate on a keyed one (see attribute.Keyed).
func (idx *Index[O, A]) Supports(q query.Leaf[O]) bool {
	return idx.SupportsLookup(q)
}

// Retrieve loads the posting lists selected by q. Loading honours ctx.
func (idx *Index[O, A]) Retrieve(ctx context.Context, q query.Leaf[O], _ *query.Options[O]) (resultset.ResultSet[O], error) {
	if err := idx.CheckReady(); err != nil {
		return nil, err
	}
	p, ok := idx.Predicate(q)
	if !ok || !idx.Supports(q) {
		return nil, fmt.Errorf("%w: %s on %s", index.ErrUnsupportedPredicate, q, idx.Name())
	}

	var bm *ibitmap.Bitmap
	if p.Kind() == query.KindHas {
		all, err := idx.load(ctx, allName(idx.prefix))
		if err != nil {
			return nil, err
		}
		bm = all
	} else {
		acc := ibitmap.Get()
		defer ibitmap.Put(acc)
		for _, v := range p.Values() {
			i, ok := idx.keys[v]
			if !ok {
				continue
			}
			posting, err := idx.load(ctx, idx.manifest.Entries[i].Blob)
			if err != nil {
				return nil, err
			}
			acc.Or(posting)
		}
		bm = acc.Clone()
	}

	return resultset.New(resultset.Config[O]{
		Seq: func(yield func(O, error) bool) {
			for ord := range bm.Ordinals() {
				o, ok := idx.resolver.Object(ord)
				if !ok {
					continue
				}
				if !yield(o, nil) {
					return
				}
			}
		},
		Contains: func(o O) (bool, error) {
			ord, ok := idx.resolver.Ordinal(o)
			return ok && bm.Contains(ord), nil
		},
		RetrievalCost: index.CostBlob,
		MergeCost:     bm.Cardinality(),
	}), nil
}

// load returns the decoded posting list stored under name. Cached lists are
// shared and must not be modified.
func (idx *Index[O, A]) load(ctx context.Context, name string) (*ibitmap.Bitmap, error) {
	if bm, ok := idx.cache.Get(name); ok {
		return bm, nil
	}

	ch := idx.group.DoChan(name, func() (any, error) {
		data, err := idx.store.Get(context.WithoutCancel(ctx), name)
		if err != nil {
			return nil, err
		}
		raw, err := compress.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
		}
		bm := ibitmap.New()
		if err := bm.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
		}
		idx.cache.Add(name, bm)
		return bm, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ibitmap.Bitmap), nil
	}
}

// DistinctKeys returns the stored keys in ascending order.
func (idx *Index[O, A]) DistinctKeys(_ context.Context, _ *query.Options[O]) (resultset.ResultSet[A], error) {
	keys := make([]A, len(idx.manifest.Entries))
	for i, e := range idx.manifest.Entries {
		keys[i] = e.Key
	}
	return index.Keys(keys, index.CostBlob, func(a, b A) bool { return a == b }), nil
}

// CountForKey returns the stored count for key without loading its posting list.
func (idx *Index[O, A]) CountForKey(_ context.Context, key A, _ *query.Options[O]) (int, error) {
	if i, ok := idx.keys[key]; ok {
		return idx.manifest.Entries[i].Count, nil
	}
	return 0, nil
}

// Cached returns the number of posting lists held in memory.
func (idx *Index[O, A]) Cached() int { return idx.cache.Len() }

// Package bitmap wraps roaring bitmaps used as posting lists of object ordinals.
package bitmap

import (
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmap is a set of 32-bit object ordinals.
type Bitmap struct {
	rb *roaring.Bitmap
}

var pool = sync.Pool{
	New: func() any {
		return &Bitmap{rb: roaring.New()}
	},
}

// New returns an empty bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// Of returns a bitmap holding ords.
func Of(ords ...uint32) *Bitmap {
	return &Bitmap{rb: roaring.BitmapOf(ords...)}
}

// Get takes a cleared bitmap from the pool. Return it with Put.
func Get() *Bitmap {
	b := pool.Get().(*Bitmap)
	b.rb.Clear()
	return b
}

// Put returns b to the pool. b must not be used afterwards.
func Put(b *Bitmap) {
	if b == nil {
		return
	}
	b.rb.Clear()
	pool.Put(b)
}

// Add inserts ord.
func (b *Bitmap) Add(ord uint32) { b.rb.Add(ord) }

// Remove deletes ord.
func (b *Bitmap) Remove(ord uint32) { b.rb.Remove(ord) }

// Contains reports whether ord is set.
func (b *Bitmap) Contains(ord uint32) bool { return b.rb.Contains(ord) }

// IsEmpty reports whether no ordinal is set.
func (b *Bitmap) IsEmpty() bool { return b.rb.IsEmpty() }

// Cardinality returns the number of ordinals.
func (b *Bitmap) Cardinality() int { return int(b.rb.GetCardinality()) }

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap { return &Bitmap{rb: b.rb.Clone()} }

// Or merges other into b.
func (b *Bitmap) Or(other *Bitmap) { b.rb.Or(other.rb) }

// Clear removes every ordinal.
func (b *Bitmap) Clear() { b.rb.Clear() }

// Ordinals iterates the set in ascending order.
func (b *Bitmap) Ordinals() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// MarshalBinary encodes b in the portable roaring format.
func (b *Bitmap) MarshalBinary() ([]byte, error) {
	b.rb.RunOptimize()
	return b.rb.ToBytes()
}

// UnmarshalBinary replaces the contents of b with data.
func (b *Bitmap) UnmarshalBinary(data []byte) error {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(data); err != nil {
		return err
	}
	b.rb = rb
	return nil
}

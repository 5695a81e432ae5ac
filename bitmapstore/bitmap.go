// Package bitmapstore persists one compressed integer set per key and
// exposes set algebra over named keys or in-memory sets.
//
// Each key holds the object identifiers of the documents tagged with one
// context layer or one feature. Membership queries at scale are
// intersections/unions over these sets, so the representation is a Roaring
// bitmap: compressed, sorted, with sub-linear memory in the
// sparsity-adjusted cardinality.
package bitmapstore

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Type tags a bitmap. Dynamic variants are reserved for future use.
type Type string

const (
	TypeStatic  Type = "static"
	TypeDynamic Type = "dynamic"
)

// Default id range bounds: [0, 2^32).
const (
	DefaultRangeMin uint64 = 0
	DefaultRangeMax uint64 = 1 << 32
)

// Bitmap is a compressed, sorted set of unsigned integers in
// [RangeMin, RangeMax), identified by its store key.
type Bitmap struct {
	Key      string
	Type     Type
	RangeMin uint64
	RangeMax uint64

	rb *roaring.Bitmap
}

// NewBitmap creates an empty bitmap with the default range.
func NewBitmap(key string) *Bitmap {
	return &Bitmap{
		Key:      key,
		Type:     TypeStatic,
		RangeMin: DefaultRangeMin,
		RangeMax: DefaultRangeMax,
		rb:       roaring.New(),
	}
}

// FromIDs creates a bitmap holding the given ids.
func FromIDs(key string, ids ...uint32) *Bitmap {
	b := NewBitmap(key)
	b.AddMany(ids)
	return b
}

// Add inserts one id. Repeated addition is a no-op (set semantics).
func (b *Bitmap) Add(id uint32) {
	if b.inRange(id) {
		b.rb.Add(id)
	}
}

// AddMany inserts many ids.
func (b *Bitmap) AddMany(ids []uint32) {
	for _, id := range ids {
		b.Add(id)
	}
}

// Remove deletes one id. Removing an absent id is a no-op.
func (b *Bitmap) Remove(id uint32) {
	b.rb.Remove(id)
}

// RemoveMany deletes many ids.
func (b *Bitmap) RemoveMany(ids []uint32) {
	for _, id := range ids {
		b.rb.Remove(id)
	}
}

// Contains checks membership.
func (b *Bitmap) Contains(id uint32) bool {
	return b.rb.Contains(id)
}

// IsEmpty returns true if the set has no elements.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Cardinality returns the number of elements.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// ToArray returns the elements in ascending order.
func (b *Bitmap) ToArray() []uint32 {
	return b.rb.ToArray()
}

// Iterator returns an iterator over the set in ascending order.
func (b *Bitmap) Iterator() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{
		Key:      b.Key,
		Type:     b.Type,
		RangeMin: b.RangeMin,
		RangeMax: b.RangeMax,
		rb:       b.rb.Clone(),
	}
}

func (b *Bitmap) inRange(id uint32) bool {
	return uint64(id) >= b.RangeMin && uint64(id) < b.RangeMax
}

// And intersects pre-resolved bitmaps without any store lookup.
// An empty input, or any empty/nil operand, yields the empty set.
func And(bitmaps ...*Bitmap) *Bitmap {
	out := NewBitmap("")
	if len(bitmaps) == 0 {
		return out
	}
	for _, b := range bitmaps {
		if b == nil || b.IsEmpty() {
			return out
		}
	}
	out.rb = bitmaps[0].rb.Clone()
	for _, b := range bitmaps[1:] {
		out.rb.And(b.rb)
		if out.rb.IsEmpty() {
			break
		}
	}
	return out
}

// Or unions pre-resolved bitmaps without any store lookup.
// Nil operands are skipped; an empty input yields the empty set.
func Or(bitmaps ...*Bitmap) *Bitmap {
	out := NewBitmap("")
	for _, b := range bitmaps {
		if b == nil {
			continue
		}
		out.rb.Or(b.rb)
	}
	return out
}

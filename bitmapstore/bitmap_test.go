package bitmapstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmap_SetSemantics(t *testing.T) {
	b := NewBitmap("layer-a")
	require.True(t, b.IsEmpty())

	// 1. Add is idempotent
	b.Add(1000)
	b.Add(1000)
	b.Add(1001)
	require.Equal(t, uint64(2), b.Cardinality())
	require.True(t, b.Contains(1000))
	require.False(t, b.Contains(1002))

	// 2. Remove, including an absent id
	b.Remove(1000)
	b.Remove(9999)
	require.Equal(t, []uint32{1001}, b.ToArray())

	// 3. Out-of-range ids are rejected silently by the range guard
	narrow := NewBitmap("narrow")
	narrow.RangeMin = 1000
	narrow.RangeMax = 2000
	narrow.Add(500)
	narrow.Add(1500)
	narrow.Add(2000)
	require.Equal(t, []uint32{1500}, narrow.ToArray())
}

func TestBitmap_Iterator(t *testing.T) {
	b := FromIDs("x", 3, 1, 2)

	var got []uint32
	for id := range b.Iterator() {
		got = append(got, id)
	}
	require.Equal(t, []uint32{1, 2, 3}, got)
}

func TestBitmap_CloneIsIndependent(t *testing.T) {
	a := FromIDs("a", 1, 2)
	c := a.Clone()
	c.Add(3)

	require.Equal(t, uint64(2), a.Cardinality())
	require.Equal(t, uint64(3), c.Cardinality())
}

func TestAnd(t *testing.T) {
	a := FromIDs("a", 1, 2, 3)
	b := FromIDs("b", 2, 3, 4)
	c := FromIDs("c", 3, 4, 5)

	// 1. Pairwise and three-way intersection
	require.Equal(t, []uint32{2, 3}, And(a, b).ToArray())
	require.Equal(t, []uint32{3}, And(a, b, c).ToArray())

	// 2. Intersection with the empty set is empty
	require.True(t, And(a, NewBitmap("empty")).IsEmpty())

	// 3. Nil operand behaves as the empty set
	require.True(t, And(a, nil, b).IsEmpty())

	// 4. And of nothing is empty
	require.True(t, And().IsEmpty())

	// 5. Operands are not mutated
	require.Equal(t, uint64(3), a.Cardinality())
	require.Equal(t, uint64(3), b.Cardinality())
}

func TestOr(t *testing.T) {
	a := FromIDs("a", 1, 2)
	b := FromIDs("b", 2, 3)

	require.Equal(t, []uint32{1, 2, 3}, Or(a, b).ToArray())

	// Nil operands are skipped
	require.Equal(t, []uint32{1, 2}, Or(a, nil).ToArray())

	// Or of nothing is empty
	require.True(t, Or().IsEmpty())
}

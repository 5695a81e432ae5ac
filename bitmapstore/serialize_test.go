package bitmapstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerialize_RoundTrip(t *testing.T) {
	b := FromIDs("layer-a", 1000, 1001, 2000)
	b.RangeMin = 500
	b.RangeMax = 5000

	data, err := Serialize(b)
	require.NoError(t, err)

	out, err := Deserialize("layer-a", data)
	require.NoError(t, err)
	require.Equal(t, b.Key, out.Key)
	require.Equal(t, b.Type, out.Type)
	require.Equal(t, b.RangeMin, out.RangeMin)
	require.Equal(t, b.RangeMax, out.RangeMax)
	require.Equal(t, b.ToArray(), out.ToArray())
}

func TestSerialize_CompressesLargePayloads(t *testing.T) {
	// Sparse sets above the threshold take the zstd path.
	big := NewBitmap("big")
	for i := uint32(0); i < 100_000; i += 7 {
		big.Add(i)
	}

	data, err := Serialize(big)
	require.NoError(t, err)
	require.NotZero(t, data[4]&flagCompressed)

	out, err := Deserialize("big", data)
	require.NoError(t, err)
	require.Equal(t, big.Cardinality(), out.Cardinality())

	// Small sets stay uncompressed
	small := FromIDs("small", 1, 2, 3)
	data, err = Serialize(small)
	require.NoError(t, err)
	require.Zero(t, data[4]&flagCompressed)
}

func TestDeserialize_Invalid(t *testing.T) {
	// 1. Bad magic
	_, err := Deserialize("x", []byte("XXXX\x00\x00"))
	require.ErrorContains(t, err, "bad magic")

	// 2. Truncated input
	_, err = Deserialize("x", []byte("CB"))
	require.ErrorContains(t, err, "bad magic")

	// 3. Valid header, truncated payload
	data, err := Serialize(FromIDs("x", 1, 2, 3))
	require.NoError(t, err)
	_, err = Deserialize("x", data[:len(data)-2])
	require.ErrorContains(t, err, "payload length mismatch")
}

package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	provider := NewMemory()
	store := provider.Dataset("documents")

	// 1. Get on an empty dataset
	_, err := store.Get(ctx, "1000")
	require.ErrorIs(t, err, ErrNotFound)

	// 2. Put and Get
	err = store.Put(ctx, "1000", []byte("alpha"))
	require.NoError(t, err)

	value, err := store.Get(ctx, "1000")
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), value)

	// 3. Overwrite
	err = store.Put(ctx, "1000", []byte("beta"))
	require.NoError(t, err)

	value, err = store.Get(ctx, "1000")
	require.NoError(t, err)
	require.Equal(t, []byte("beta"), value)

	// 4. GetMany skips missing keys
	err = store.Put(ctx, "1001", []byte("gamma"))
	require.NoError(t, err)

	values, err := store.GetMany(ctx, []string{"1000", "missing", "1001"})
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.Equal(t, []byte("beta"), values["1000"])
	require.Equal(t, []byte("gamma"), values["1001"])

	// 5. ListKeys is sorted
	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"1000", "1001"}, keys)

	count, err := store.KeysCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// 6. Delete, including an absent key
	err = store.Delete(ctx, "1000")
	require.NoError(t, err)
	err = store.Delete(ctx, "never-existed")
	require.NoError(t, err)

	_, err = store.Get(ctx, "1000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_DatasetIsolation(t *testing.T) {
	ctx := context.Background()
	provider := NewMemory()

	a := provider.Dataset("a")
	b := provider.Dataset("b")

	require.NoError(t, a.Put(ctx, "k", []byte("in-a")))

	_, err := b.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	// Same name yields the same underlying data
	again := provider.Dataset("a")
	value, err := again.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("in-a"), value)
}

func TestMemory_CopyOnReadWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemory().Dataset("x")

	original := []byte("stable")
	require.NoError(t, store.Put(ctx, "k", original))

	// Mutating the slice handed to Put must not affect the store
	original[0] = 'X'

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("stable"), value)

	// Mutating the slice returned by Get must not affect the store
	value[0] = 'Y'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("stable"), again)
}

package miniokv

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"

	"github.com/idncsk/canvas/kvstore"
)

// TestProvider_Integration requires a running MinIO instance.
// Skip if not available.
func TestProvider_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-canvas"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	provider := NewProvider(client, bucket, "test-prefix/")
	store := provider.Dataset("documents")

	// 1. Put and Get
	err = store.Put(ctx, "1000", []byte("hello object storage"))
	require.NoError(t, err)

	value, err := store.Get(ctx, "1000")
	require.NoError(t, err)
	require.Equal(t, []byte("hello object storage"), value)

	// 2. Keys containing slashes work as object keys
	err = store.Put(ctx, "sha1/deadbeef", []byte("1000"))
	require.NoError(t, err)

	value, err = store.Get(ctx, "sha1/deadbeef")
	require.NoError(t, err)
	require.Equal(t, []byte("1000"), value)

	// 3. GetMany skips missing
	values, err := store.GetMany(ctx, []string{"1000", "missing", "sha1/deadbeef"})
	require.NoError(t, err)
	require.Len(t, values, 2)

	// 4. Listing
	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"1000", "sha1/deadbeef"}, keys)

	count, err := store.KeysCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// 5. Dataset isolation under the same root prefix
	other := provider.Dataset("hashes")
	_, err = other.Get(ctx, "1000")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	// 6. Delete, including an absent key
	err = store.Delete(ctx, "1000")
	require.NoError(t, err)
	err = store.Delete(ctx, "never-existed")
	require.NoError(t, err)

	_, err = store.Get(ctx, "1000")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	// Cleanup
	err = store.Delete(ctx, "sha1/deadbeef")
	require.NoError(t, err)
}

package dynamokv

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"

	"github.com/idncsk/canvas/kvstore"
)

func TestIntegration_DynamoProvider(t *testing.T) {
	tableName := os.Getenv("DYNAMODB_TABLE")
	if tableName == "" {
		t.Skip("Skipping DynamoDB integration test: DYNAMODB_TABLE not set")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	client := dynamodb.NewFromConfig(cfg)
	provider := NewProvider(client, tableName, WithRateLimit(50, 10))

	// Unique dataset per run so parallel runs do not collide
	dataset := fmt.Sprintf("it-%d", time.Now().UnixNano())
	store := provider.Dataset(dataset)

	// 1. Round trip
	err = store.Put(ctx, "1000", []byte("payload"))
	require.NoError(t, err)

	value, err := store.Get(ctx, "1000")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), value)

	// 2. Batch read skips missing keys
	err = store.Put(ctx, "sha1/cafe", []byte("1000"))
	require.NoError(t, err)

	values, err := store.GetMany(ctx, []string{"1000", "missing", "sha1/cafe"})
	require.NoError(t, err)
	require.Len(t, values, 2)

	// 3. Scans stay within the dataset partition
	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"1000", "sha1/cafe"}, keys)

	count, err := store.KeysCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// Cleanup
	for _, key := range keys {
		require.NoError(t, store.Delete(ctx, key))
	}
	_, err = store.Get(ctx, "1000")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

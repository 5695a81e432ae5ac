// Package miniokv provides a kvstore.Provider for MinIO and S3-compatible
// object storage.
//
// Each dataset maps to an object key prefix under a configurable root.
// Object storage has no atomic multi-key operations, so all contract
// semantics (skip missing on batch get, idempotent delete) are built from
// single-object calls.
package miniokv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/idncsk/canvas/kvstore"
)

// Provider is a kvstore.Provider over one MinIO bucket.
type Provider struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ kvstore.Provider = (*Provider)(nil)

// NewProvider creates a provider over the given bucket.
// rootPrefix is prepended to all object keys (e.g. "canvas/").
func NewProvider(client *minio.Client, bucket, rootPrefix string) *Provider {
	return &Provider{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

// Dataset implements kvstore.Provider.
func (p *Provider) Dataset(name string) kvstore.Store {
	return &store{
		client: p.client,
		bucket: p.bucket,
		prefix: path.Join(p.prefix, name) + "/",
	}
}

// store is one dataset, an object key prefix inside the bucket.
type store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ kvstore.Store = (*store)(nil)

func (s *store) objectKey(key string) string {
	return s.prefix + key
}

func isNoSuchKey(err error) bool {
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey" || errResp.Code == "NotFound"
}

// Get implements kvstore.Store.
func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%q: %w", key, kvstore.ErrNotFound)
		}
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// Put implements kvstore.Store.
func (s *store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key),
		bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// GetMany implements kvstore.Store. Missing keys are skipped.
func (s *store) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kvstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[key] = data
	}
	return out, nil
}

// Delete implements kvstore.Store. Absent keys are not errors.
func (s *store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ListKeys implements kvstore.Store.
func (s *store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		key := strings.TrimPrefix(obj.Key, s.prefix)
		if key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ListValues implements kvstore.Store.
func (s *store) ListValues(ctx context.Context) ([][]byte, error) {
	keys, err := s.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		data, err := s.Get(ctx, key)
		if err != nil {
			// An object deleted between list and get is skipped.
			if errors.Is(err, kvstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		values = append(values, data)
	}
	return values, nil
}

// KeysCount implements kvstore.Store.
func (s *store) KeysCount(ctx context.Context) (int, error) {
	keys, err := s.ListKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

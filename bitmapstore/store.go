package bitmapstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/idncsk/canvas/kvstore"
)

var (
	// ErrNotFound is returned when a key has never been created.
	ErrNotFound = errors.New("bitmap not found")
	// ErrKeyExists is returned on duplicate creation.
	ErrKeyExists = errors.New("bitmap key already exists")
)

// DefaultCacheSize bounds the number of decoded bitmaps held in memory.
const DefaultCacheSize = 4096

// Store persists one bitmap per key with an in-memory read cache.
//
// Every mutating operation writes the encoded bitmap through to the
// backing dataset before returning; the cache is purely derived state and
// is never authoritative. On restart a fresh load from the backing store
// always wins.
type Store struct {
	mu         sync.Mutex
	backing    kvstore.Store
	cache      *lru.Cache[string, *Bitmap]
	rangeMin   uint64
	rangeMax   uint64
	autoCreate bool
}

// Option configures a Store.
type Option func(*Store)

// WithCacheSize sets the maximum number of cached bitmaps.
func WithCacheSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			c, _ := lru.New[string, *Bitmap](n)
			s.cache = c
		}
	}
}

// WithRange sets the id bounds [min, max) of bitmaps this store creates.
func WithRange(min, max uint64) Option {
	return func(s *Store) {
		s.rangeMin = min
		s.rangeMax = max
	}
}

// WithAutoCreate controls whether Tick/Untick create missing keys.
// Enabled by default; when disabled, ticking an unknown key fails without
// creating it.
func WithAutoCreate(enabled bool) Option {
	return func(s *Store) {
		s.autoCreate = enabled
	}
}

// NewStore creates a bitmap store over the given dataset.
func NewStore(backing kvstore.Store, opts ...Option) *Store {
	cache, _ := lru.New[string, *Bitmap](DefaultCacheSize)
	s := &Store{
		backing:    backing,
		cache:      cache,
		rangeMin:   DefaultRangeMin,
		rangeMax:   DefaultRangeMax,
		autoCreate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates an empty bitmap under key, seeded with the given ids.
// Fails without mutation if key already exists.
func (s *Store) Create(ctx context.Context, key string, ids ...uint32) (*Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAbsent(ctx, key); err != nil {
		return nil, err
	}

	b := s.newBitmap(key)
	b.AddMany(ids)
	if err := s.persist(ctx, b); err != nil {
		return nil, err
	}
	s.cache.Add(key, b)
	return b, nil
}

// CreateFrom creates a bitmap under key adopting seed's contents by value.
// Fails without mutation if key already exists.
func (s *Store) CreateFrom(ctx context.Context, key string, seed *Bitmap) (*Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAbsent(ctx, key); err != nil {
		return nil, err
	}

	b := seed.Clone()
	b.Key = key
	if err := s.persist(ctx, b); err != nil {
		return nil, err
	}
	s.cache.Add(key, b)
	return b, nil
}

// Get returns the bitmap at key, loading and caching it from the backing
// store on first access. Returns ErrNotFound for keys never created.
func (s *Store) Get(ctx context.Context, key string) (*Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.get(ctx, key)
}

// Remove evicts key from the cache and deletes it from the backing store.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Remove(key)
	if err := s.backing.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove bitmap %q: %w", key, err)
	}
	return nil
}

// Rename re-keys a bitmap: create under newKey from the current value,
// then delete the old key. On partial failure the cache stays consistent
// with the backing store and the underlying error is reported.
func (s *Store) Rename(ctx context.Context, key, newKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	if err := s.checkAbsent(ctx, newKey); err != nil {
		return err
	}

	renamed := b.Clone()
	renamed.Key = newKey
	if err := s.persist(ctx, renamed); err != nil {
		return err
	}
	s.cache.Add(newKey, renamed)

	if err := s.backing.Delete(ctx, key); err != nil {
		// New key committed, old key still present. Drop the stale cache
		// entry so reads reflect the backing store and report the failure.
		s.cache.Remove(key)
		return fmt.Errorf("rename bitmap %q -> %q: old key not removed: %w", key, newKey, err)
	}
	s.cache.Remove(key)
	return nil
}

// Tick adds ids to the bitmap at key and persists it before returning.
// Missing keys are auto-created unless auto-create is disabled, in which
// case the call fails without creating anything. Repeated ticks of the
// same id are idempotent.
func (s *Store) Tick(ctx context.Context, key string, ids ...uint32) (*Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if !s.autoCreate {
			return nil, err
		}
		b = s.newBitmap(key)
	}

	b.AddMany(ids)
	if err := s.persist(ctx, b); err != nil {
		return nil, err
	}
	s.cache.Add(key, b)
	return b, nil
}

// Untick removes ids from the bitmap at key and persists it.
// Unticking a key that does not exist fails with ErrNotFound.
func (s *Store) Untick(ctx context.Context, key string, ids ...uint32) (*Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}

	b.RemoveMany(ids)
	if err := s.persist(ctx, b); err != nil {
		return nil, err
	}
	s.cache.Add(key, b)
	return b, nil
}

// TickMany applies Tick independently across keys. The per-key writes are
// not mutually atomic: a failure partway leaves earlier keys mutated and
// later keys untouched; the first error is returned.
func (s *Store) TickMany(ctx context.Context, keys []string, ids ...uint32) error {
	for _, key := range keys {
		if _, err := s.Tick(ctx, key, ids...); err != nil {
			return err
		}
	}
	return nil
}

// UntickMany applies Untick independently across keys, with the same
// non-atomicity as TickMany.
func (s *Store) UntickMany(ctx context.Context, keys []string, ids ...uint32) error {
	for _, key := range keys {
		if _, err := s.Untick(ctx, key, ids...); err != nil {
			return err
		}
	}
	return nil
}

// And intersects the bitmaps named by keys.
//
// Intersection with an empty set is always empty, so the loop
// short-circuits on the first missing or empty key without resolving the
// remaining ones. And of an empty key list is the empty set.
func (s *Store) And(ctx context.Context, keys []string) (*Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		return NewBitmap(""), nil
	}

	resolved := make([]*Bitmap, 0, len(keys))
	for _, key := range keys {
		b, err := s.get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return NewBitmap(""), nil
			}
			return nil, err
		}
		if b.IsEmpty() {
			return NewBitmap(""), nil
		}
		resolved = append(resolved, b)
	}
	return And(resolved...), nil
}

// Or unions the bitmaps named by keys. Missing keys contribute nothing;
// Or of an empty key list is the empty set.
func (s *Store) Or(ctx context.Context, keys []string) (*Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := make([]*Bitmap, 0, len(keys))
	for _, key := range keys {
		b, err := s.get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		resolved = append(resolved, b)
	}
	return Or(resolved...), nil
}

// List enumerates every key known to the backing store, cached or not.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.backing.ListKeys(ctx)
}

func (s *Store) newBitmap(key string) *Bitmap {
	b := NewBitmap(key)
	b.RangeMin = s.rangeMin
	b.RangeMax = s.rangeMax
	return b
}

// get must be called with s.mu held.
func (s *Store) get(ctx context.Context, key string) (*Bitmap, error) {
	if b, ok := s.cache.Get(key); ok {
		return b, nil
	}

	data, err := s.backing.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, fmt.Errorf("bitmap %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("load bitmap %q: %w", key, err)
	}

	b, err := Deserialize(key, data)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, b)
	return b, nil
}

// checkAbsent must be called with s.mu held.
func (s *Store) checkAbsent(ctx context.Context, key string) error {
	if s.cache.Contains(key) {
		return fmt.Errorf("bitmap %q: %w", key, ErrKeyExists)
	}
	_, err := s.backing.Get(ctx, key)
	if err == nil {
		return fmt.Errorf("bitmap %q: %w", key, ErrKeyExists)
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("check bitmap %q: %w", key, err)
	}
	return nil
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, b *Bitmap) error {
	data, err := Serialize(b)
	if err != nil {
		return err
	}
	if err := s.backing.Put(ctx, b.Key, data); err != nil {
		return fmt.Errorf("persist bitmap %q: %w", b.Key, err)
	}
	return nil
}

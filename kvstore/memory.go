package kvstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Provider for tests and ephemeral indexes.
// It stores values without any filesystem dependency.
// Thread-safe for concurrent reads and writes.
type Memory struct {
	mu       sync.RWMutex
	datasets map[string]*memoryStore
}

// NewMemory creates a new in-memory provider.
func NewMemory() *Memory {
	return &Memory{
		datasets: make(map[string]*memoryStore),
	}
}

// Dataset returns the store for name, creating it on first use.
func (m *Memory) Dataset(name string) Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds, ok := m.datasets[name]
	if !ok {
		ds = &memoryStore{values: make(map[string][]byte)}
		m.datasets[name] = ds
	}
	return ds
}

type memoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to prevent external mutation.
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

func (s *memoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	s.values[key] = copied
	return nil
}

func (s *memoryStore) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := s.values[key]; ok {
			copied := make([]byte, len(value))
			copy(copied, value)
			result[key] = copied
		}
	}
	return result, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *memoryStore) ListKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) ListValues(_ context.Context) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value := s.values[key]
		copied := make([]byte, len(value))
		copy(copied, value)
		values = append(values, copied)
	}
	return values, nil
}

func (s *memoryStore) KeysCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values), nil
}

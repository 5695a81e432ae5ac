package layer

import (
	"context"
	"fmt"
	"sync"

	"github.com/idncsk/canvas/codec"
	"github.com/idncsk/canvas/kvstore"
)

// Registry resolves layer names and identifiers, creating layers on demand.
//
// The context tree consumes this as an injected capability; any
// implementation honoring these semantics can replace the default one.
type Registry interface {
	// GetByName returns the layer named name. ok=false if absent.
	GetByName(name string) (*Layer, bool)

	// GetByID returns the layer with the given identifier. ok=false if absent.
	GetByID(id string) (*Layer, bool)

	// Create returns the layer named name, creating and persisting it if it
	// does not exist yet.
	Create(ctx context.Context, name string) (*Layer, error)

	// Restore returns the layer with the given identifier, creating a
	// placeholder record under that exact identifier if no record
	// survives. Bitmap memberships are keyed by identifier, so a restore
	// must never mint a new one.
	Restore(ctx context.Context, id string) (*Layer, error)

	// Rename changes the name of the layer currently named name,
	// preserving its identifier. Fails if name is unknown or newName is
	// already taken by a different layer.
	Rename(ctx context.Context, name, newName string) error
}

// Store is the default Registry, backed by a kvstore dataset.
//
// Records are kept in memory (byName/byID) and written through on every
// create/rename. The root layer is a constant and is never written.
type Store struct {
	mu     sync.RWMutex
	store  kvstore.Store
	codec  codec.Codec
	byName map[string]*Layer
	byID   map[string]*Layer
}

// NewStore creates a registry over the given dataset.
func NewStore(store kvstore.Store, c codec.Codec) *Store {
	if c == nil {
		c = codec.Default
	}
	s := &Store{
		store:  store,
		codec:  c,
		byName: make(map[string]*Layer),
		byID:   make(map[string]*Layer),
	}
	root := Root()
	s.byName[root.Name] = root
	s.byID[root.ID] = root
	return s
}

// Load rebuilds the in-memory maps from the backing dataset.
func (s *Store) Load(ctx context.Context) error {
	values, err := s.store.ListValues(ctx)
	if err != nil {
		return fmt.Errorf("load layers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, data := range values {
		var l Layer
		if err := s.codec.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("decode layer record: %w", err)
		}
		s.byName[l.Name] = &l
		s.byID[l.ID] = &l
	}
	return nil
}

// Len returns the number of known layers, root included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byID)
}

// GetByName returns the layer named name.
func (s *Store) GetByName(name string) (*Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.byName[name]
	return l, ok
}

// GetByID returns the layer with the given identifier.
func (s *Store) GetByID(id string) (*Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.byID[id]
	return l, ok
}

// Create returns the layer named name, allocating one if needed.
func (s *Store) Create(ctx context.Context, name string) (*Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.byName[name]; ok {
		return l, nil
	}

	l, err := New(name)
	if err != nil {
		return nil, err
	}
	for s.byID[l.ID] != nil {
		l.ID = newID()
	}

	if err := s.persist(ctx, l); err != nil {
		return nil, err
	}
	s.byName[l.Name] = l
	s.byID[l.ID] = l
	return l, nil
}

// Restore returns the layer with identifier id, creating a placeholder
// named after the identifier when no record survives. The placeholder
// keeps the persisted identifier so identifier-keyed data stays
// reachable; the name can be fixed later with Rename.
func (s *Store) Restore(ctx context.Context, id string) (*Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.byID[id]; ok {
		return l, nil
	}

	l, err := New(id)
	if err != nil {
		return nil, err
	}
	l.ID = id
	if other, ok := s.byName[l.Name]; ok && other.ID != id {
		return nil, fmt.Errorf("restore %q: %w", id, ErrNameTaken)
	}

	if err := s.persist(ctx, l); err != nil {
		return nil, err
	}
	s.byName[l.Name] = l
	s.byID[l.ID] = l
	return l, nil
}

// Rename changes name to newName, keeping the identifier stable.
func (s *Store) Rename(ctx context.Context, name, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("rename %q: %w", name, ErrNotFound)
	}
	if l.ID == RootID {
		return fmt.Errorf("rename %q: root layer is immutable", name)
	}
	if other, taken := s.byName[newName]; taken && other.ID != l.ID {
		return fmt.Errorf("rename %q to %q: %w", name, newName, ErrNameTaken)
	}
	if _, err := New(newName); err != nil {
		return err
	}

	renamed := *l
	renamed.Name = newName
	if err := s.persist(ctx, &renamed); err != nil {
		return err
	}

	delete(s.byName, name)
	s.byName[newName] = &renamed
	s.byID[renamed.ID] = &renamed
	return nil
}

func (s *Store) persist(ctx context.Context, l *Layer) error {
	data, err := s.codec.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode layer %s: %w", l.ID, err)
	}
	if err := s.store.Put(ctx, l.ID, data); err != nil {
		return fmt.Errorf("persist layer %s: %w", l.ID, err)
	}
	return nil
}

// Package badgerkv provides a kvstore.Provider backed by BadgerDB.
//
// BadgerDB is an embedded LSM store with low-latency local access. All
// datasets share one database; each dataset's keys are namespaced with a
// NUL-separated prefix, which no dataset name or key may contain.
package badgerkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/idncsk/canvas/kvstore"
)

// Config holds configuration for a BadgerDB provider.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: synchronous writes and a
// five minute GC interval.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing: no disk
// I/O, no sync, no GC.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Provider is a kvstore.Provider over one BadgerDB instance.
// Safe for concurrent use. Close stops the GC loop and the database.
type Provider struct {
	db     *badger.DB
	stopGC chan struct{}
	doneGC chan struct{}
}

var _ kvstore.Provider = (*Provider)(nil)

// Open creates and opens a BadgerDB provider with the given configuration.
func Open(cfg Config) (*Provider, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	p := &Provider{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		p.stopGC = make(chan struct{})
		p.doneGC = make(chan struct{})
		go p.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return p, nil
}

// OpenInMemory opens an in-memory provider for testing. Data is lost on
// close.
func OpenInMemory() (*Provider, error) {
	return Open(InMemoryConfig())
}

// Dataset implements kvstore.Provider.
func (p *Provider) Dataset(name string) kvstore.Store {
	return &store{
		db:     p.db,
		prefix: append([]byte(name), 0),
	}
}

// Close stops garbage collection and closes the database.
func (p *Provider) Close() error {
	if p.stopGC != nil {
		close(p.stopGC)
		<-p.doneGC
		p.stopGC = nil
	}
	return p.db.Close()
}

func (p *Provider) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(p.doneGC)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when no GC was needed.
			err := p.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// store is one dataset inside the shared database.
type store struct {
	db     *badger.DB
	prefix []byte
}

var _ kvstore.Store = (*store)(nil)

func (s *store) fullKey(key string) []byte {
	return append(append([]byte{}, s.prefix...), key...)
}

// Get implements kvstore.Store.
func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.fullKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%q: %w", key, kvstore.ErrNotFound)
	}
	return value, err
}

// Put implements kvstore.Store.
func (s *store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.fullKey(key), value)
	})
}

// GetMany implements kvstore.Store. Missing keys are skipped.
func (s *store) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get(s.fullKey(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[key] = value
		}
		return nil
	})
	return out, err
}

// Delete implements kvstore.Store. Absent keys are not errors.
func (s *store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.fullKey(key))
	})
}

// ListKeys implements kvstore.Store.
func (s *store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.scan(ctx, false, func(key string, _ []byte) {
		keys = append(keys, key)
	})
	return keys, err
}

// ListValues implements kvstore.Store.
func (s *store) ListValues(ctx context.Context) ([][]byte, error) {
	var values [][]byte
	err := s.scan(ctx, true, func(_ string, value []byte) {
		values = append(values, value)
	})
	return values, err
}

// KeysCount implements kvstore.Store.
func (s *store) KeysCount(ctx context.Context) (int, error) {
	count := 0
	err := s.scan(ctx, false, func(string, []byte) {
		count++
	})
	return count, err
}

func (s *store) scan(ctx context.Context, withValues bool, fn func(key string, value []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = withValues

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(s.prefix):])
			var value []byte
			if withValues {
				var err error
				value, err = item.ValueCopy(nil)
				if err != nil {
					return err
				}
			}
			fn(key, value)
		}
		return nil
	})
}

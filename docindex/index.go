package docindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/idncsk/canvas/bitmapstore"
	"github.com/idncsk/canvas/codec"
	"github.com/idncsk/canvas/contexttree"
	"github.com/idncsk/canvas/kvstore"
)

// ErrNotFound is returned when no document matches an id or hash.
var ErrNotFound = errors.New("document not found")

// Dataset names the index opens on its provider.
const (
	DatasetDocuments       = "documents"
	DatasetHashes          = "hashes"
	DatasetMeta            = "meta"
	DatasetInternalBitmaps = "bitmaps/internal"
	DatasetContextBitmaps  = "bitmaps/contexts"
	DatasetFeatureBitmaps  = "bitmaps/features"
)

const (
	oidCounterKey = "oid.next"

	// activeBitmapKey is the internal bookkeeping set of all live oids.
	activeBitmapKey = "active"
)

// Index owns the document table, the hash→oid dedup map and three bitmap
// stores (internal bookkeeping, contexts, features).
//
// The write path of InsertDocument issues the document record, the
// context ticks and the feature ticks concurrently; the writes are
// best-effort, not transactional. Every step is idempotent, so re-running
// an insert over a partially applied state converges without double
// counting (set ticks don't grow cardinality, record and hash writes
// overwrite in place).
type Index struct {
	mu      sync.Mutex
	nextOID uint32

	docs   kvstore.Store
	hashes kvstore.Store
	meta   kvstore.Store

	internal *bitmapstore.Store
	contexts *bitmapstore.Store
	features *bitmapstore.Store

	tree  *contexttree.Tree
	codec codec.Codec

	bitmapOpts []bitmapstore.Option
}

// Option configures an Index.
type Option func(*Index)

// WithCodec sets the codec used for document records.
func WithCodec(c codec.Codec) Option {
	return func(ix *Index) {
		if c != nil {
			ix.codec = c
		}
	}
}

// WithBitmapOptions forwards options to the three bitmap stores the
// index creates.
func WithBitmapOptions(opts ...bitmapstore.Option) Option {
	return func(ix *Index) {
		ix.bitmapOpts = opts
	}
}

// WithFirstOID overrides the first object identifier handed out. Values
// below FirstOID collide with the reserved bookkeeping range and are
// ignored.
func WithFirstOID(oid uint32) Option {
	return func(ix *Index) {
		if oid >= FirstOID {
			ix.nextOID = oid
		}
	}
}

// New creates a document index over the given provider and context tree.
func New(provider kvstore.Provider, tree *contexttree.Tree, opts ...Option) *Index {
	ix := &Index{
		nextOID: FirstOID,
		docs:    provider.Dataset(DatasetDocuments),
		hashes:  provider.Dataset(DatasetHashes),
		meta:    provider.Dataset(DatasetMeta),
		tree:    tree,
		codec:   codec.Default,
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.internal = bitmapstore.NewStore(provider.Dataset(DatasetInternalBitmaps), ix.bitmapOpts...)
	ix.contexts = bitmapstore.NewStore(provider.Dataset(DatasetContextBitmaps), ix.bitmapOpts...)
	ix.features = bitmapstore.NewStore(provider.Dataset(DatasetFeatureBitmaps), ix.bitmapOpts...)
	return ix
}

// Load restores the oid counter from the meta dataset.
func (ix *Index) Load(ctx context.Context) error {
	data, err := ix.meta.Get(ctx, oidCounterKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load oid counter: %w", err)
	}
	next, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return fmt.Errorf("decode oid counter: %w", err)
	}
	if uint32(next) > ix.nextOID {
		ix.nextOID = uint32(next)
	}
	return nil
}

// Contexts exposes the context bitmap store for raw algebra queries.
func (ix *Index) Contexts() *bitmapstore.Store { return ix.contexts }

// Features exposes the feature bitmap store for raw algebra queries.
func (ix *Index) Features() *bitmapstore.Store { return ix.features }

// InsertDocument validates doc, deduplicates by content hash and indexes
// it under the given context paths and feature names.
//
// A hash seen before routes to an update of the existing document (same
// oid, record overwritten, new tags ticked) — never a duplicate. For a
// new hash the record write, context ticks and feature ticks run
// concurrently; the hash→oid mapping is recorded last so a crash
// mid-insert is repaired by re-running the insert.
func (ix *Index) InsertDocument(ctx context.Context, doc *Document, contextPaths, features []string) (*Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	hash, err := doc.ContentHash()
	if err != nil {
		return nil, err
	}
	hashKey := "sha1/" + hash

	if data, err := ix.hashes.Get(ctx, hashKey); err == nil {
		oid, err := decodeOID(data)
		if err != nil {
			return nil, err
		}
		doc.ID = oid
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return nil, fmt.Errorf("lookup hash %q: %w", hashKey, err)
	}

	if doc.ID == 0 {
		doc.ID = ix.allocOID()
	} else if doc.ID < FirstOID {
		return nil, &ErrInvalidDocument{Reason: fmt.Sprintf("oid %d is in the reserved range", doc.ID)}
	}

	contextKeys, err := ix.resolveContextKeys(ctx, contextPaths)
	if err != nil {
		return nil, err
	}
	featureKeys := uniqueStrings(append(doc.ImplicitFeatures(), features...))

	record, err := ix.codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %d: %w", doc.ID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ix.docs.Put(gctx, docKey(doc.ID), record); err != nil {
			return fmt.Errorf("persist document %d: %w", doc.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		return ix.contexts.TickMany(gctx, contextKeys, doc.ID)
	})
	g.Go(func() error {
		if err := ix.features.TickMany(gctx, featureKeys, doc.ID); err != nil {
			return err
		}
		_, err := ix.internal.Tick(gctx, activeBitmapKey, doc.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ix.hashes.Put(ctx, hashKey, encodeOID(doc.ID)); err != nil {
		return nil, fmt.Errorf("record hash %q: %w", hashKey, err)
	}
	if err := ix.persistOIDCounter(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument returns the document with the given oid.
func (ix *Index) GetDocument(ctx context.Context, id uint32) (*Document, error) {
	data, err := ix.docs.Get(ctx, docKey(id))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return ix.decodeDocument(data)
}

// GetDocumentByHash looks a document up by content hash. When hashType is
// given the lookup key is "hashType/hash"; otherwise hash is used as-is.
func (ix *Index) GetDocumentByHash(ctx context.Context, hash, hashType string) (*Document, error) {
	key := hash
	if hashType != "" {
		key = hashType + "/" + hash
	}
	data, err := ix.hashes.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, fmt.Errorf("hash %q: %w", key, ErrNotFound)
		}
		return nil, err
	}
	oid, err := decodeOID(data)
	if err != nil {
		return nil, err
	}
	return ix.GetDocument(ctx, oid)
}

// GetDocuments batch-looks up documents by oid, in input order. Found
// documents are returned; absent oids are skipped. A nil id list fails
// the whole batch.
func (ix *Index) GetDocuments(ctx context.Context, ids []uint32) ([]*Document, error) {
	if ids == nil {
		return nil, &ErrInvalidDocument{Reason: "nil id list"}
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}
	values, err := ix.docs.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*Document, 0, len(values))
	for _, key := range keys {
		data, ok := values[key]
		if !ok {
			continue
		}
		doc, err := ix.decodeDocument(data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// ListDocuments returns documents filtered by context paths and feature
// names. Either filter list is a disjunction; combining the two groups is
// a conjunction. With no filters, every stored document is returned.
func (ix *Index) ListDocuments(ctx context.Context, contextPaths, features []string) ([]*Document, error) {
	if len(contextPaths) == 0 && len(features) == 0 {
		return ix.allDocuments(ctx)
	}

	var groups []*bitmapstore.Bitmap
	if len(contextPaths) > 0 {
		keys := make([]string, 0, len(contextPaths))
		for _, path := range contextPaths {
			if node, ok := ix.tree.GetNode(path); ok && node != ix.tree.Root() {
				keys = append(keys, node.LayerID())
			}
		}
		group, err := ix.contexts.Or(ctx, keys)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if len(features) > 0 {
		group, err := ix.features.Or(ctx, features)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return ix.GetDocuments(ctx, bitmapstore.And(groups...).ToArray())
}

// RemoveDocument deletes the document and unticks its oid from every
// context and feature bitmap, the active set and the hash map.
func (ix *Index) RemoveDocument(ctx context.Context, id uint32) error {
	doc, err := ix.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	contextKeys, err := ix.contexts.List(ctx)
	if err != nil {
		return err
	}
	featureKeys, err := ix.features.List(ctx)
	if err != nil {
		return err
	}
	if err := ix.contexts.UntickMany(ctx, contextKeys, id); err != nil {
		return err
	}
	if err := ix.features.UntickMany(ctx, featureKeys, id); err != nil {
		return err
	}
	if _, err := ix.internal.Untick(ctx, activeBitmapKey, id); err != nil && !errors.Is(err, bitmapstore.ErrNotFound) {
		return err
	}

	if hash, ok := doc.Hashes["sha1"]; ok {
		if err := ix.hashes.Delete(ctx, "sha1/"+hash); err != nil {
			return err
		}
	}
	if err := ix.docs.Delete(ctx, docKey(id)); err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return nil
}

// resolveContextKeys inserts each path into the tree (auto-creating
// layers) and collects the layer id of every node on the path, so a
// document lands in the bitmap of each ancestor context as well as the
// leaf.
func (ix *Index) resolveContextKeys(ctx context.Context, contextPaths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	for _, path := range contextPaths {
		node, err := ix.tree.Insert(ctx, path)
		if err != nil {
			return nil, err
		}
		for n := node; n != nil && n != ix.tree.Root(); n = n.Parent() {
			id := n.LayerID()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			keys = append(keys, id)
		}
	}
	return keys, nil
}

func (ix *Index) allDocuments(ctx context.Context) ([]*Document, error) {
	values, err := ix.docs.ListValues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Document, 0, len(values))
	for _, data := range values {
		doc, err := ix.decodeDocument(data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (ix *Index) decodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := ix.codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document record: %w", err)
	}
	return &doc, nil
}

func (ix *Index) allocOID() uint32 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	oid := ix.nextOID
	ix.nextOID++
	return oid
}

func (ix *Index) persistOIDCounter(ctx context.Context) error {
	ix.mu.Lock()
	next := ix.nextOID
	ix.mu.Unlock()

	if err := ix.meta.Put(ctx, oidCounterKey, []byte(strconv.FormatUint(uint64(next), 10))); err != nil {
		return fmt.Errorf("persist oid counter: %w", err)
	}
	return nil
}

func docKey(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func encodeOID(id uint32) []byte {
	return []byte(strconv.FormatUint(uint64(id), 10))
}

func decodeOID(data []byte) (uint32, error) {
	v, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("decode oid %q: %w", data, err)
	}
	return uint32(v), nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

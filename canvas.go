package canvas

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/idncsk/canvas/bitmapstore"
	"github.com/idncsk/canvas/contexttree"
	"github.com/idncsk/canvas/docindex"
	"github.com/idncsk/canvas/kvstore"
	"github.com/idncsk/canvas/layer"
)

// Dataset names the facade opens on its provider, in addition to the
// datasets the document index claims for itself.
const (
	DatasetLayers = "layers"
	DatasetTree   = "tree"
)

// DB wires the layer registry, the context tree and the document index
// over a single key/value provider.
//
// Tree and registry state lives in memory and is written through to the
// provider on every mutation; the provider is the source of truth.
// DB assumes a single writer. Concurrent readers are safe against each
// other but not against a concurrent writer.
type DB struct {
	provider kvstore.Provider
	registry *layer.Store
	tree     *contexttree.Tree
	index    *docindex.Index
	metrics  MetricsCollector
	logger   *Logger
}

// Open wires a DB over the given provider and restores persisted state.
//
// A fresh provider yields an empty database with just the root context.
// Open fails loudly if persisted state exists but cannot be decoded.
func Open(ctx context.Context, provider kvstore.Provider, optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns)

	treeOpts := []contexttree.Option{contexttree.WithCodec(opts.codec)}
	if opts.rootLayer != nil {
		treeOpts = append(treeOpts, contexttree.WithRootLayer(opts.rootLayer))
	}

	bitmapOpts := []bitmapstore.Option{bitmapstore.WithAutoCreate(opts.autoCreateSets)}
	if opts.bitmapCacheSize > 0 {
		bitmapOpts = append(bitmapOpts, bitmapstore.WithCacheSize(opts.bitmapCacheSize))
	}
	indexOpts := []docindex.Option{
		docindex.WithCodec(opts.codec),
		docindex.WithBitmapOptions(bitmapOpts...),
	}
	if opts.firstOID >= docindex.FirstOID {
		indexOpts = append(indexOpts, docindex.WithFirstOID(opts.firstOID))
	}

	registry := layer.NewStore(provider.Dataset(DatasetLayers), opts.codec)
	tree := contexttree.New(registry, provider.Dataset(DatasetTree), treeOpts...)
	index := docindex.New(provider, tree, indexOpts...)

	db := &DB{
		provider: provider,
		registry: registry,
		tree:     tree,
		index:    index,
		metrics:  opts.metricsCollector,
		logger:   opts.logger,
	}

	if err := registry.Load(ctx); err != nil {
		db.logger.LogLoad(ctx, 0, 0, err)
		return nil, fmt.Errorf("open: %w", translateError(err))
	}
	if err := tree.Load(ctx); err != nil {
		db.logger.LogLoad(ctx, 0, 0, err)
		return nil, fmt.Errorf("open: %w", translateError(err))
	}
	if err := index.Load(ctx); err != nil {
		db.logger.LogLoad(ctx, 0, 0, err)
		return nil, fmt.Errorf("open: %w", translateError(err))
	}

	db.logger.LogLoad(ctx, registry.Len(), len(tree.Paths()), nil)
	return db, nil
}

// Close releases resources held by the backing provider, if it holds any.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	if closer, ok := db.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Tree returns the underlying context tree for advanced use.
func (db *DB) Tree() *contexttree.Tree { return db.tree }

// Index returns the underlying document index for advanced use.
func (db *DB) Index() *docindex.Index { return db.index }

// Registry returns the underlying layer registry for advanced use.
func (db *DB) Registry() *layer.Store { return db.registry }

// InsertPath creates the context path, auto-creating layers for unknown
// segments, and persists the new tree shape.
func (db *DB) InsertPath(ctx context.Context, path string) error {
	start := time.Now()
	err := db.treeMutation(ctx, "insert", path, func() error {
		_, err := db.tree.Insert(ctx, path)
		return err
	})
	db.metrics.RecordTreeOp("insert", time.Since(start), err)
	return err
}

// ListPaths returns every root-to-leaf path in the context tree, sorted.
func (db *DB) ListPaths() []string {
	return db.tree.Paths()
}

// GetPath reports whether the given context path exists.
func (db *DB) GetPath(path string) bool {
	_, ok := db.tree.GetNode(path)
	return ok
}

// MovePath relocates the node at from to the path to. With recursive the
// whole subtree moves; otherwise only the node moves and its children
// are promoted to its previous parent.
func (db *DB) MovePath(ctx context.Context, from, to string, recursive bool) error {
	start := time.Now()
	err := db.treeMutation(ctx, "move", from, func() error {
		return db.tree.Move(ctx, from, to, recursive)
	})
	db.metrics.RecordTreeOp("move", time.Since(start), err)
	return err
}

// RemovePath detaches the node at path. With recursive the whole subtree
// is dropped; otherwise children are promoted to the removed node's
// parent. Documents keep their bitmap memberships; only the addressable
// shape changes.
func (db *DB) RemovePath(ctx context.Context, path string, recursive bool) error {
	start := time.Now()
	err := db.treeMutation(ctx, "remove", path, func() error {
		return db.tree.Remove(ctx, path, recursive)
	})
	db.metrics.RecordTreeOp("remove", time.Since(start), err)
	return err
}

// RenameLayer renames a layer everywhere it appears in the tree. The
// layer keeps its identifier, so bitmap memberships are unaffected.
func (db *DB) RenameLayer(ctx context.Context, name, newName string) error {
	start := time.Now()
	err := db.treeMutation(ctx, "rename", name, func() error {
		return db.tree.RenameLayer(ctx, name, newName)
	})
	db.metrics.RecordTreeOp("rename", time.Since(start), err)
	return err
}

// TreeDisplay returns a name-keyed snapshot of the tree for rendering.
func (db *DB) TreeDisplay() *contexttree.DisplayNode {
	return db.tree.Display()
}

// Subscribe registers fn for tree change events. The returned cancel
// function removes the subscription.
func (db *DB) Subscribe(fn func(contexttree.Event)) (cancel func()) {
	return db.tree.Subscribe(fn)
}

// InsertDocument validates, deduplicates and indexes doc under the given
// context paths and feature names, persisting any tree growth the paths
// caused.
func (db *DB) InsertDocument(ctx context.Context, doc *docindex.Document, contextPaths, features []string) (*docindex.Document, error) {
	start := time.Now()
	out, err := db.index.InsertDocument(ctx, doc, contextPaths, features)
	if err == nil && len(contextPaths) > 0 {
		err = db.tree.Save(ctx)
	}
	err = translateError(err)
	var oid uint32
	if out != nil {
		oid = out.ID
	}
	db.logger.LogInsertDocument(ctx, oid, len(contextPaths), len(features), err)
	db.metrics.RecordInsert(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetDocument returns the document with the given oid.
func (db *DB) GetDocument(ctx context.Context, id uint32) (*docindex.Document, error) {
	doc, err := db.index.GetDocument(ctx, id)
	return doc, translateError(err)
}

// GetDocumentByHash returns the document with the given content hash.
func (db *DB) GetDocumentByHash(ctx context.Context, hash, hashType string) (*docindex.Document, error) {
	doc, err := db.index.GetDocumentByHash(ctx, hash, hashType)
	return doc, translateError(err)
}

// GetDocuments batch-looks up documents by oid.
func (db *DB) GetDocuments(ctx context.Context, ids []uint32) ([]*docindex.Document, error) {
	docs, err := db.index.GetDocuments(ctx, ids)
	return docs, translateError(err)
}

// ListDocuments returns documents matching the context and feature
// filters: OR within each list, AND across the two.
func (db *DB) ListDocuments(ctx context.Context, contextPaths, features []string) ([]*docindex.Document, error) {
	start := time.Now()
	docs, err := db.index.ListDocuments(ctx, contextPaths, features)
	err = translateError(err)
	db.logger.LogListDocuments(ctx, len(contextPaths), len(features), len(docs), err)
	db.metrics.RecordList(len(docs), time.Since(start), err)
	return docs, err
}

// RemoveDocument deletes the document and all its index memberships.
func (db *DB) RemoveDocument(ctx context.Context, id uint32) error {
	start := time.Now()
	err := translateError(db.index.RemoveDocument(ctx, id))
	db.logger.LogRemoveDocument(ctx, id, err)
	db.metrics.RecordRemove(time.Since(start), err)
	return err
}

// ListSchemas returns the registered document schema types, sorted.
func (db *DB) ListSchemas() []string {
	return docindex.ListSchemas()
}

// HasSchema reports whether a document schema type is registered.
func (db *DB) HasSchema(schemaType string) bool {
	return docindex.HasSchema(schemaType)
}

// AndFeatures returns the oids present in every one of the given feature
// bitmaps. Any unknown or empty feature yields an empty result.
func (db *DB) AndFeatures(ctx context.Context, features []string) ([]uint32, error) {
	b, err := db.index.Features().And(ctx, features)
	if err != nil {
		return nil, translateError(err)
	}
	return b.ToArray(), nil
}

// OrFeatures returns the oids present in at least one of the given
// feature bitmaps. Unknown features are skipped.
func (db *DB) OrFeatures(ctx context.Context, features []string) ([]uint32, error) {
	b, err := db.index.Features().Or(ctx, features)
	if err != nil {
		return nil, translateError(err)
	}
	return b.ToArray(), nil
}

// treeMutation runs fn, persists the tree snapshot on success and logs
// the outcome.
func (db *DB) treeMutation(ctx context.Context, op, path string, fn func() error) error {
	err := fn()
	if err == nil {
		err = db.tree.Save(ctx)
	}
	err = translateError(err)
	db.logger.LogTreeOp(ctx, op, path, err)
	return err
}

// Package canvas provides an embedded context-and-feature index for Go.
//
// Canvas organizes documents along two independent axes:
//
//   - Contexts: a tree of named layers addressed by slash paths
//     (e.g. "/work/acme/reports"), where each path segment resolves to a
//     shared layer. Two paths using the segment "reports" share one
//     reports layer and therefore one membership bitmap.
//   - Features: flat tags (e.g. "type/note", "lang/go") with no
//     hierarchy.
//
// Memberships are compressed roaring bitmaps keyed by layer id or
// feature name, persisted write-through to a pluggable key/value
// backend. Queries combine bitmaps with set algebra: OR within a filter
// group, AND across groups.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, err := canvas.Open(ctx, kvstore.NewMemory())
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	doc, err := db.InsertDocument(ctx, &docindex.Document{
//	    Type: "data/abstr/note",
//	    Data: map[string]any{"content": "quarterly numbers"},
//	}, []string{"/work/acme/reports"}, []string{"lang/en"})
//
//	docs, err := db.ListDocuments(ctx, []string{"/work/acme"}, nil)
//
// Backends live in the kvstore package: in-memory, Badger, MinIO and
// DynamoDB. Any implementation of kvstore.Provider works.
package canvas

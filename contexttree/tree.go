// Package contexttree maintains the path-addressable hierarchy of layers.
//
// Paths are slash-delimited layer names ("/work/project/reports"). Each
// layer materializes at most once; the tree nodes reference layers by
// identifier and resolve the record through the injected layer registry,
// so a rename never leaves stale copies behind.
//
// The tree performs no internal locking: structural mutations (Insert,
// Move, Remove) assume a single logical writer and must be serialized by
// the caller. Reads racing a mutation see an undefined but memory-safe
// snapshot.
package contexttree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/idncsk/canvas/codec"
	"github.com/idncsk/canvas/kvstore"
	"github.com/idncsk/canvas/layer"
)

var (
	// ErrNotFound is returned when a path, layer or node cannot be resolved.
	ErrNotFound = errors.New("path not found")
	// ErrCycle is returned when a recursive move would place a node inside
	// its own subtree.
	ErrCycle = errors.New("cannot move a node into its own subtree")
	// ErrExists is returned when a move target already holds a different
	// node bound to the moved layer.
	ErrExists = errors.New("target already occupied")
)

// Tree owns the root node and coordinates layer resolution, structural
// mutation and persistence.
type Tree struct {
	root      *Node
	rootLayer *layer.Layer
	registry  layer.Registry
	store     kvstore.Store
	codec     codec.Codec

	subs subscribers
}

// Option configures a Tree.
type Option func(*Tree)

// WithRootLayer overrides the layer the root node is bound to. Each tree
// instance carries its own root configuration; there is no process-wide
// default shared between instances.
func WithRootLayer(l *layer.Layer) Option {
	return func(t *Tree) {
		t.rootLayer = l
	}
}

// WithCodec sets the codec used for tree snapshots.
func WithCodec(c codec.Codec) Option {
	return func(t *Tree) {
		if c != nil {
			t.codec = c
		}
	}
}

// New creates a tree with a fresh root over the given registry and
// snapshot dataset.
func New(registry layer.Registry, store kvstore.Store, opts ...Option) *Tree {
	t := &Tree{
		rootLayer: layer.Root(),
		registry:  registry,
		store:     store,
		codec:     codec.Default,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.root, _ = NewNode(t.rootLayer.ID)
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Insert resolves path segment by segment, creating layers and nodes as
// needed, and returns the node at path.
func (t *Tree) Insert(ctx context.Context, path string) (*Node, error) {
	n, err := t.insertPath(ctx, path, nil, true)
	if err != nil {
		return nil, err
	}
	t.subs.notify(Event{Op: OpInsert, Path: normalizePath(path)})
	return n, nil
}

// InsertNode inserts the supplied node under the node at path, creating
// intermediate layers and nodes as needed. If a child with the supplied
// node's layer id already exists at the target it is kept unchanged and
// returned; the supplied node is not attached.
func (t *Tree) InsertNode(ctx context.Context, path string, node *Node) (*Node, error) {
	if node == nil {
		return nil, &ErrInvalidNode{Reason: "nil node"}
	}
	n, err := t.insertPath(ctx, path, node, true)
	if err != nil {
		return nil, err
	}
	t.subs.notify(Event{Op: OpInsert, Path: normalizePath(path)})
	return n, nil
}

// InsertExisting behaves like Insert but never creates layers: if any
// segment's layer does not exist, it fails with ErrNotFound without
// mutating the tree.
func (t *Tree) InsertExisting(ctx context.Context, path string) (*Node, error) {
	n, err := t.insertPath(ctx, path, nil, false)
	if err != nil {
		return nil, err
	}
	t.subs.notify(Event{Op: OpInsert, Path: normalizePath(path)})
	return n, nil
}

func (t *Tree) insertPath(ctx context.Context, path string, node *Node, autoCreate bool) (*Node, error) {
	segments := splitPath(path)

	// Resolve every segment's layer before touching the tree, so a miss
	// with autoCreate disabled fails without mutation.
	layers := make([]*layer.Layer, len(segments))
	for i, name := range segments {
		l, ok := t.registry.GetByName(name)
		if !ok {
			if !autoCreate {
				return nil, fmt.Errorf("layer %q: %w", name, ErrNotFound)
			}
			var err error
			l, err = t.registry.Create(ctx, name)
			if err != nil {
				return nil, err
			}
		}
		layers[i] = l
	}

	cursor := t.root
	for _, l := range layers {
		child, ok := cursor.Child(l.ID)
		if !ok {
			child, _ = NewNode(l.ID)
			cursor.attach(child)
		}
		cursor = child
	}

	if node != nil {
		cursor = cursor.attach(node)
	}
	return cursor, nil
}

// GetNode returns the node at path without mutating anything. Empty path
// and "/" resolve to the root. ok=false if any segment's layer is unknown
// or the corresponding child is absent.
func (t *Tree) GetNode(path string) (*Node, bool) {
	cursor := t.root
	for _, name := range splitPath(path) {
		l, ok := t.registry.GetByName(name)
		if !ok {
			return nil, false
		}
		child, ok := cursor.Child(l.ID)
		if !ok {
			return nil, false
		}
		cursor = child
	}
	return cursor, true
}

// Move relocates the node at from so that it resolves at to. The final
// segment of to must name the moved node's layer.
//
// Non-recursive: the layer is reattached as a fresh node at to, the
// original node is detached, and its direct children are promoted onto
// the original parent (the subtree flattens one level).
//
// Recursive: the node object itself is transplanted with its entire
// subtree. The move is rejected with ErrCycle if the source node appears
// in to's ancestor chain.
func (t *Tree) Move(ctx context.Context, from, to string, recursive bool) error {
	src, ok := t.GetNode(from)
	if !ok {
		return fmt.Errorf("move source %q: %w", from, ErrNotFound)
	}
	parent := src.Parent()
	if parent == nil {
		return fmt.Errorf("move source %q: cannot move the root", from)
	}

	srcLayer, ok := t.registry.GetByID(src.LayerID())
	if !ok {
		return fmt.Errorf("move source %q: %w", from, layer.ErrNotFound)
	}
	toSegments := splitPath(to)
	if len(toSegments) == 0 || toSegments[len(toSegments)-1] != srcLayer.Name {
		return fmt.Errorf("move target %q: must end with layer %q", to, srcLayer.Name)
	}

	if !recursive {
		if _, err := t.insertPath(ctx, to, nil, true); err != nil {
			return err
		}
		children := src.Children()
		for _, child := range children {
			src.detach(child.LayerID())
			parent.attach(child)
		}
		parent.detach(src.LayerID())
		t.subs.notify(Event{Op: OpMove, Path: normalizePath(from), TargetPath: normalizePath(to)})
		return nil
	}

	// Reject a move into the node's own subtree by walking the resolved
	// ancestor chain of the target, comparing nodes by identity rather
	// than by name.
	targetParentPath := strings.Join(toSegments[:len(toSegments)-1], "/")
	cursor := t.root
	for _, name := range splitPath(targetParentPath) {
		l, ok := t.registry.GetByName(name)
		if !ok {
			break // remaining segments will be freshly created, cannot be src
		}
		child, ok := cursor.Child(l.ID)
		if !ok {
			break
		}
		if child == src {
			return fmt.Errorf("move %q -> %q: %w", from, to, ErrCycle)
		}
		cursor = child
	}

	targetParent, err := t.insertPath(ctx, targetParentPath, nil, true)
	if err != nil {
		return err
	}
	// The target parent may already hold its own node for the moved layer
	// (the same name under two branches). Attaching would keep the
	// existing child and drop the transplanted subtree, so fail before
	// detaching anything.
	if existing, ok := targetParent.Child(src.LayerID()); ok && existing != src {
		return fmt.Errorf("move %q -> %q: %w", from, to, ErrExists)
	}
	parent.detach(src.LayerID())
	targetParent.attach(src)
	t.subs.notify(Event{Op: OpMove, Path: normalizePath(from), TargetPath: normalizePath(to)})
	return nil
}

// Remove detaches the node at path. Non-recursive removal promotes the
// node's children onto its parent before detaching; recursive removal
// drops the entire subtree.
func (t *Tree) Remove(ctx context.Context, path string, recursive bool) error {
	node, ok := t.GetNode(path)
	if !ok {
		return fmt.Errorf("remove %q: %w", path, ErrNotFound)
	}
	parent := node.Parent()
	if parent == nil {
		return fmt.Errorf("remove %q: cannot remove the root", path)
	}

	if !recursive {
		for _, child := range node.Children() {
			node.detach(child.LayerID())
			parent.attach(child)
		}
	}
	parent.detach(node.LayerID())
	t.subs.notify(Event{Op: OpRemove, Path: normalizePath(path)})
	return nil
}

// RenameLayer delegates an identifier-preserving rename to the registry.
// Tree shape is unaffected; derived paths change wherever the layer
// appears.
func (t *Tree) RenameLayer(ctx context.Context, name, newName string) error {
	if err := t.registry.Rename(ctx, name, newName); err != nil {
		return err
	}
	t.subs.notify(Event{Op: OpRename, Path: name, TargetPath: newName})
	return nil
}

// PathOf derives the path of a node by walking its ancestor chain to the
// root, joining layer names with "/". The root's own path is "/".
func (t *Tree) PathOf(node *Node) (string, error) {
	if node == t.root {
		return "/", nil
	}
	var names []string
	for n := node; n != nil && n != t.root; n = n.Parent() {
		l, ok := t.registry.GetByID(n.LayerID())
		if !ok {
			return "", fmt.Errorf("node layer %q: %w", n.LayerID(), layer.ErrNotFound)
		}
		names = append(names, l.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return "/" + strings.Join(names, "/"), nil
}

// Paths returns the distinct leaf paths, sorted lexicographically.
// Traversal uses an explicit work stack so depth is bounded by the heap,
// not the goroutine stack.
func (t *Tree) Paths() []string {
	type frame struct {
		node *Node
		path string
	}

	var paths []string
	stack := []frame{{node: t.root, path: ""}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := f.node.Children()
		if len(children) == 0 {
			if f.node != t.root {
				paths = append(paths, f.path)
			}
			continue
		}
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			name := child.LayerID()
			if l, ok := t.registry.GetByID(child.LayerID()); ok {
				name = l.Name
			}
			stack = append(stack, frame{node: child, path: f.path + "/" + name})
		}
	}
	sort.Strings(paths)
	return paths
}

// splitPath splits a slash-delimited path into segment names, ignoring
// leading/trailing slashes and dropping empty segments.
func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func normalizePath(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}

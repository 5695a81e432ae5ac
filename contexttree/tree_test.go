package contexttree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idncsk/canvas/kvstore"
	"github.com/idncsk/canvas/layer"
)

func newTestTree(t *testing.T) (*Tree, *layer.Store) {
	t.Helper()
	provider := kvstore.NewMemory()
	reg := layer.NewStore(provider.Dataset("layers"), nil)
	return New(reg, provider.Dataset("tree")), reg
}

func TestTree_InsertThenGet(t *testing.T) {
	ctx := context.Background()
	tree, reg := newTestTree(t)

	// 1. Insert materializes layers and nodes for every segment
	node, err := tree.Insert(ctx, "/work/acme/reports")
	require.NoError(t, err)

	got, ok := tree.GetNode("/work/acme/reports")
	require.True(t, ok)
	require.Same(t, node, got)

	// Intermediate nodes exist too
	_, ok = tree.GetNode("/work")
	require.True(t, ok)
	_, ok = tree.GetNode("/work/acme")
	require.True(t, ok)

	// 2. Layers are shared by name: a second path reusing "reports" binds
	// the same layer, hence the same bitmap key
	other, err := tree.Insert(ctx, "/home/reports")
	require.NoError(t, err)

	first, _ := tree.GetNode("/work/acme/reports")
	require.NotSame(t, first, other)
	require.Equal(t, first.LayerID(), other.LayerID())

	reports, ok := reg.GetByName("reports")
	require.True(t, ok)
	require.Equal(t, reports.ID, other.LayerID())

	// 3. Re-inserting an existing path is a no-op
	again, err := tree.Insert(ctx, "/work/acme/reports")
	require.NoError(t, err)
	require.Same(t, first, again)
}

func TestTree_GetNodeRoot(t *testing.T) {
	tree, _ := newTestTree(t)

	for _, path := range []string{"", "/", "//"} {
		n, ok := tree.GetNode(path)
		require.True(t, ok, "path %q", path)
		require.Same(t, tree.Root(), n)
	}

	_, ok := tree.GetNode("/missing")
	require.False(t, ok)
}

func TestTree_InsertExisting(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	_, err := tree.Insert(ctx, "/work")
	require.NoError(t, err)

	// 1. Known layers resolve
	n, err := tree.InsertExisting(ctx, "/work")
	require.NoError(t, err)
	require.NotNil(t, n)

	// 2. An unknown segment fails without mutating the tree
	_, err = tree.InsertExisting(ctx, "/work/unknown")
	require.ErrorIs(t, err, ErrNotFound)
	_, ok := tree.GetNode("/work/unknown")
	require.False(t, ok)
	require.Equal(t, []string{"/work"}, tree.Paths())
}

func TestTree_Paths(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	require.Empty(t, tree.Paths())

	for _, p := range []string{"/work/acme/reports", "/work/acme/specs", "/home"} {
		_, err := tree.Insert(ctx, p)
		require.NoError(t, err)
	}

	require.Equal(t, []string{
		"/home",
		"/work/acme/reports",
		"/work/acme/specs",
	}, tree.Paths())
}

func TestTree_PathOf(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	n, err := tree.Insert(ctx, "/a/b/c")
	require.NoError(t, err)

	path, err := tree.PathOf(n)
	require.NoError(t, err)
	require.Equal(t, "/a/b/c", path)

	path, err = tree.PathOf(tree.Root())
	require.NoError(t, err)
	require.Equal(t, "/", path)
}

func TestTree_MoveRecursive(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	_, err := tree.Insert(ctx, "/work/acme/reports")
	require.NoError(t, err)
	_, err = tree.Insert(ctx, "/archive")
	require.NoError(t, err)

	src, _ := tree.GetNode("/work/acme")

	// 1. The subtree transplants wholesale
	err = tree.Move(ctx, "/work/acme", "/archive/acme", true)
	require.NoError(t, err)

	moved, ok := tree.GetNode("/archive/acme")
	require.True(t, ok)
	require.Same(t, src, moved)

	_, ok = tree.GetNode("/archive/acme/reports")
	require.True(t, ok)
	_, ok = tree.GetNode("/work/acme")
	require.False(t, ok)

	// 2. Target must end with the moved layer's name
	err = tree.Move(ctx, "/archive/acme", "/work/other", true)
	require.ErrorContains(t, err, "must end with layer")
}

func TestTree_MoveNonRecursivePromotesChildren(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	_, err := tree.Insert(ctx, "/work/acme/reports")
	require.NoError(t, err)

	err = tree.Move(ctx, "/work/acme", "/acme", false)
	require.NoError(t, err)

	// The layer resolves at the new location as a fresh node
	_, ok := tree.GetNode("/acme")
	require.True(t, ok)

	// Children were promoted onto the original parent
	_, ok = tree.GetNode("/work/reports")
	require.True(t, ok)
	_, ok = tree.GetNode("/work/acme")
	require.False(t, ok)
}

func TestTree_MoveCycleGuard(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	_, err := tree.Insert(ctx, "/a/b")
	require.NoError(t, err)

	// 1. Moving a node into its own subtree is rejected
	err = tree.Move(ctx, "/a", "/a/b/a", true)
	require.ErrorIs(t, err, ErrCycle)

	// 2. A sibling whose name merely contains the source name is fine
	_, err = tree.Insert(ctx, "/ab/c")
	require.NoError(t, err)
	err = tree.Move(ctx, "/a", "/ab/c/a", true)
	require.NoError(t, err)

	_, ok := tree.GetNode("/ab/c/a/b")
	require.True(t, ok)
}

func TestTree_MoveOntoOccupiedTarget(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	// Two branches hold their own node for the shared layer "x"
	_, err := tree.Insert(ctx, "/a/x/deep")
	require.NoError(t, err)
	_, err = tree.Insert(ctx, "/b/x")
	require.NoError(t, err)

	// 1. Transplanting onto the occupied slot is rejected as a conflict
	err = tree.Move(ctx, "/a/x", "/b/x", true)
	require.ErrorIs(t, err, ErrExists)

	// 2. Nothing was detached: both nodes and the subtree survive
	_, ok := tree.GetNode("/a/x/deep")
	require.True(t, ok)
	_, ok = tree.GetNode("/b/x")
	require.True(t, ok)
	require.Equal(t, []string{"/a/x/deep", "/b/x"}, tree.Paths())

	// 3. Moving a node onto its own current location stays allowed
	err = tree.Move(ctx, "/a/x", "/a/x", true)
	require.NoError(t, err)
	_, ok = tree.GetNode("/a/x/deep")
	require.True(t, ok)
}

func TestTree_MoveRoot(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	err := tree.Move(ctx, "/", "/anywhere", true)
	require.ErrorContains(t, err, "cannot move the root")
}

func TestTree_Remove(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	_, err := tree.Insert(ctx, "/work/acme/reports")
	require.NoError(t, err)

	// 1. Non-recursive removal promotes children
	err = tree.Remove(ctx, "/work/acme", false)
	require.NoError(t, err)
	_, ok := tree.GetNode("/work/reports")
	require.True(t, ok)
	_, ok = tree.GetNode("/work/acme")
	require.False(t, ok)

	// 2. Recursive removal drops the subtree
	err = tree.Remove(ctx, "/work", true)
	require.NoError(t, err)
	_, ok = tree.GetNode("/work")
	require.False(t, ok)
	require.Empty(t, tree.Paths())

	// 3. Unknown path and root
	err = tree.Remove(ctx, "/ghost", false)
	require.ErrorIs(t, err, ErrNotFound)
	err = tree.Remove(ctx, "/", true)
	require.ErrorContains(t, err, "cannot remove the root")
}

func TestTree_RenameLayerChangesPaths(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	node, err := tree.Insert(ctx, "/work/reports")
	require.NoError(t, err)
	id := node.LayerID()

	err = tree.RenameLayer(ctx, "reports", "docs")
	require.NoError(t, err)

	// The identifier is stable, only derived paths change
	renamed, ok := tree.GetNode("/work/docs")
	require.True(t, ok)
	require.Equal(t, id, renamed.LayerID())

	_, ok = tree.GetNode("/work/reports")
	require.False(t, ok)
	require.Equal(t, []string{"/work/docs"}, tree.Paths())
}

func TestTree_Events(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	var events []Event
	cancel := tree.Subscribe(func(e Event) {
		events = append(events, e)
	})

	_, err := tree.Insert(ctx, "/a/b")
	require.NoError(t, err)
	require.NoError(t, tree.Move(ctx, "/a/b", "/b", true))
	require.NoError(t, tree.Remove(ctx, "/b", true))

	require.Equal(t, []Event{
		{Op: OpInsert, Path: "/a/b"},
		{Op: OpMove, Path: "/a/b", TargetPath: "/b"},
		{Op: OpRemove, Path: "/b"},
	}, events)

	// After cancel, no further events are delivered
	cancel()
	_, err = tree.Insert(ctx, "/c")
	require.NoError(t, err)
	require.Len(t, events, 3)
}

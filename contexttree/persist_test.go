package contexttree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idncsk/canvas/kvstore"
	"github.com/idncsk/canvas/layer"
)

func TestTree_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := kvstore.NewMemory()
	layers := provider.Dataset("layers")
	snapshots := provider.Dataset("tree")

	reg := layer.NewStore(layers, nil)
	tree := New(reg, snapshots)

	for _, p := range []string{"/work/acme/reports", "/work/acme/specs", "/home/photos"} {
		_, err := tree.Insert(ctx, p)
		require.NoError(t, err)
	}
	require.NoError(t, tree.Save(ctx))

	// A fresh tree over the same datasets reproduces the exact paths
	freshReg := layer.NewStore(layers, nil)
	require.NoError(t, freshReg.Load(ctx))
	fresh := New(freshReg, snapshots)
	require.NoError(t, fresh.Load(ctx))

	require.Equal(t, tree.Paths(), fresh.Paths())

	// Layer identity survives: the reloaded node carries the same id
	orig, _ := tree.GetNode("/work/acme")
	reloaded, ok := fresh.GetNode("/work/acme")
	require.True(t, ok)
	require.Equal(t, orig.LayerID(), reloaded.LayerID())
}

func TestTree_LoadEmptyStore(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	// No snapshot yet: Load keeps the fresh root and is not an error
	require.NoError(t, tree.Load(ctx))
	require.Empty(t, tree.Paths())

	_, err := tree.Insert(ctx, "/works-after-load")
	require.NoError(t, err)
}

func TestTree_LoadUnknownLayerID(t *testing.T) {
	ctx := context.Background()
	provider := kvstore.NewMemory()
	snapshots := provider.Dataset("tree")

	// Save a tree, then reload it against a registry that never saw the
	// layer records. Orphaned identifiers get placeholder layers instead of
	// failing the whole load.
	reg := layer.NewStore(provider.Dataset("layers"), nil)
	tree := New(reg, snapshots)
	_, err := tree.Insert(ctx, "/orphan")
	require.NoError(t, err)
	require.NoError(t, tree.Save(ctx))

	orig, _ := tree.GetNode("/orphan")

	emptyReg := layer.NewStore(kvstore.NewMemory().Dataset("layers"), nil)
	fresh := New(emptyReg, snapshots)
	require.NoError(t, fresh.Load(ctx))

	require.Len(t, fresh.Paths(), 1)
	require.Equal(t, 2, emptyReg.Len()) // root + placeholder

	// The placeholder keeps the persisted identifier, so identifier-keyed
	// memberships stay reachable; only the name is synthesized from it.
	reloaded, ok := fresh.GetNode("/" + orig.LayerID())
	require.True(t, ok)
	require.Equal(t, orig.LayerID(), reloaded.LayerID())

	placeholder, ok := emptyReg.GetByID(orig.LayerID())
	require.True(t, ok)
	require.Equal(t, orig.LayerID(), placeholder.Name)
}

func TestTree_Display(t *testing.T) {
	ctx := context.Background()
	tree, reg := newTestTree(t)

	_, err := tree.Insert(ctx, "/work/reports")
	require.NoError(t, err)

	d := tree.Display()

	// Root renders with the fixed root layer's fields
	require.Equal(t, layer.RootName, d.Name)
	require.Len(t, d.Children, 1)
	require.Equal(t, "work", d.Children[0].Name)
	require.Len(t, d.Children[0].Children, 1)
	require.Equal(t, "reports", d.Children[0].Children[0].Name)

	// Renames surface in the display without re-inserting
	require.NoError(t, reg.Rename(ctx, "reports", "docs"))
	d = tree.Display()
	require.Equal(t, "docs", d.Children[0].Children[0].Name)
}

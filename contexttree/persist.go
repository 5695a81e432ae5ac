package contexttree

import (
	"context"
	"errors"
	"fmt"

	"github.com/idncsk/canvas/kvstore"
)

// treeKey is the fixed key the compact snapshot is stored under in the
// injected dataset.
const treeKey = "tree"

// compactNode is the persisted reload form: identifiers and child lists
// only. Descriptive layer fields are resolved through the registry on
// load.
type compactNode struct {
	ID       string         `json:"id"`
	Children []*compactNode `json:"children"`
}

// DisplayNode is the full rendering form carrying descriptive layer
// fields. The root is substituted with the fixed root layer's fields.
type DisplayNode struct {
	Name        string         `json:"name"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Color       string         `json:"color"`
	Children    []*DisplayNode `json:"children"`
}

// Save serializes the whole tree to the compact form and writes it under
// the fixed snapshot key.
func (t *Tree) Save(ctx context.Context) error {
	data, err := t.codec.Marshal(t.compact())
	if err != nil {
		return fmt.Errorf("encode tree snapshot: %w", err)
	}
	if err := t.store.Put(ctx, treeKey, data); err != nil {
		return fmt.Errorf("persist tree snapshot: %w", err)
	}
	return nil
}

// Load rebuilds the node hierarchy from the persisted compact form. An
// absent snapshot is not an error: the fresh root stays in place.
//
// Each persisted identifier is resolved back to its layer through the
// registry. An identifier with no surviving layer record gets a
// placeholder layer created under the persisted identifier as its name,
// so the subtree remains addressable.
func (t *Tree) Load(ctx context.Context) error {
	data, err := t.store.Get(ctx, treeKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load tree snapshot: %w", err)
	}

	var root compactNode
	if err := t.codec.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("decode tree snapshot: %w", err)
	}

	fresh, _ := NewNode(t.rootLayer.ID)
	type frame struct {
		compact *compactNode
		node    *Node
	}
	stack := []frame{{compact: &root, node: fresh}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range f.compact.Children {
			l, err := t.registry.Restore(ctx, child.ID)
			if err != nil {
				return fmt.Errorf("restore layer %q: %w", child.ID, err)
			}
			node, err := NewNode(l.ID)
			if err != nil {
				return err
			}
			f.node.attach(node)
			stack = append(stack, frame{compact: child, node: node})
		}
	}

	t.root = fresh
	return nil
}

// Display returns the full rendering form of the tree.
func (t *Tree) Display() *DisplayNode {
	out := &DisplayNode{
		Name:        t.rootLayer.Name,
		Label:       t.rootLayer.Label,
		Description: t.rootLayer.Description,
		Color:       t.rootLayer.Color,
	}

	type frame struct {
		node    *Node
		display *DisplayNode
	}
	stack := []frame{{node: t.root, display: out}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range f.node.Children() {
			d := &DisplayNode{Name: child.LayerID()}
			if l, ok := t.registry.GetByID(child.LayerID()); ok {
				d.Name = l.Name
				d.Label = l.Label
				d.Description = l.Description
				d.Color = l.Color
			}
			f.display.Children = append(f.display.Children, d)
			stack = append(stack, frame{node: child, display: d})
		}
	}
	return out
}

func (t *Tree) compact() *compactNode {
	out := &compactNode{ID: t.rootLayer.ID}

	type frame struct {
		node    *Node
		compact *compactNode
	}
	stack := []frame{{node: t.root, compact: out}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range f.node.Children() {
			c := &compactNode{ID: child.LayerID()}
			f.compact.Children = append(f.compact.Children, c)
			stack = append(stack, frame{node: child, compact: c})
		}
	}
	return out
}

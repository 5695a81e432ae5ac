package contexttree

import (
	"fmt"

	"github.com/idncsk/canvas/internal/ordered"
)

// Node wraps exactly one layer by identifier and owns an insertion-ordered
// mapping from child layer id to child node.
//
// Invariants: child-map keys equal the wrapped child's own layer id, and a
// node has at most one parent at any instant. Moves transplant nodes, they
// never alias.
type Node struct {
	layerID  string
	parent   *Node
	children *ordered.Map[string, *Node]
}

// ErrInvalidNode indicates a structurally invalid node construction.
type ErrInvalidNode struct {
	Reason string
}

func (e *ErrInvalidNode) Error() string {
	return fmt.Sprintf("invalid tree node: %s", e.Reason)
}

// NewNode creates a node bound to the given layer identifier.
func NewNode(layerID string) (*Node, error) {
	if layerID == "" {
		return nil, &ErrInvalidNode{Reason: "empty layer id"}
	}
	return &Node{
		layerID:  layerID,
		children: ordered.NewMap[string, *Node](),
	}, nil
}

// LayerID returns the identifier of the wrapped layer.
func (n *Node) LayerID() string {
	return n.layerID
}

// Parent returns the node's parent, or nil for the root and detached nodes.
func (n *Node) Parent() *Node {
	return n.parent
}

// Child returns the child wrapping the given layer id.
func (n *Node) Child(layerID string) (*Node, bool) {
	return n.children.Get(layerID)
}

// Children returns the direct children in insertion order.
func (n *Node) Children() []*Node {
	return n.children.Values()
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.children.Len() == 0
}

// attach adds child under n, detaching it from any previous parent first
// to preserve the single-parent invariant. If a child with the same layer
// id already exists it is kept and returned unchanged.
func (n *Node) attach(child *Node) *Node {
	if existing, ok := n.children.Get(child.layerID); ok {
		return existing
	}
	if child.parent != nil {
		child.parent.detach(child.layerID)
	}
	child.parent = n
	n.children.Set(child.layerID, child)
	return child
}

// detach removes the child wrapping layerID and clears its parent link.
func (n *Node) detach(layerID string) (*Node, bool) {
	child, ok := n.children.Get(layerID)
	if !ok {
		return nil, false
	}
	n.children.Delete(layerID)
	child.parent = nil
	return child, true
}

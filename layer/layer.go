// Package layer manages named layers, the node type of the context tree.
//
// A layer is created once per distinct name and shared by reference
// wherever that name appears in the hierarchy. The registry owns
// identifier allocation; tree nodes store only the identifier and resolve
// the full record on demand.
package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// RootID is the identifier of the designated root layer.
	RootID = "/"
	// RootName is the name of the designated root layer.
	RootName = "universe"
)

// ErrNotFound is returned when no layer matches a name or identifier.
var ErrNotFound = errors.New("layer not found")

// ErrNameTaken is returned when a rename targets a name already bound to
// a different layer.
var ErrNameTaken = errors.New("layer name already in use")

// ErrInvalidName indicates a malformed layer name at construction.
//
// This is a programmer error, never silently defaulted.
type ErrInvalidName struct {
	Name string
}

func (e *ErrInvalidName) Error() string {
	return fmt.Sprintf("invalid layer name: %q", e.Name)
}

// Layer is a named, identified node type in the context hierarchy.
//
// Layers are immutable once created except for Name, which the registry
// may change via Rename (the identifier is preserved).
type Layer struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Label          string   `json:"label,omitempty"`
	Description    string   `json:"description,omitempty"`
	Color          string   `json:"color,omitempty"`
	Type           string   `json:"type,omitempty"`
	ContextBitmaps []string `json:"contextBitmaps,omitempty"`
}

// Root returns the fixed root layer. It always exists, is never persisted
// and never deleted.
func Root() *Layer {
	return &Layer{
		ID:    RootID,
		Name:  RootName,
		Label: "Universe",
		Type:  "universe",
	}
}

// New creates a layer with a freshly allocated identifier.
func New(name string) (*Layer, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return nil, &ErrInvalidName{Name: name}
	}
	return &Layer{
		ID:    newID(),
		Name:  name,
		Label: name,
		Type:  "context",
	}, nil
}

// newID allocates a short, stable layer identifier.
// Short ids keep bitmap keys compact; the registry retries on the
// (unlikely) collision.
func newID() string {
	return uuid.NewString()[:8]
}

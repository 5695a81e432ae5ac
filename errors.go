package canvas

import (
	"errors"
	"fmt"

	"github.com/idncsk/canvas/bitmapstore"
	"github.com/idncsk/canvas/contexttree"
	"github.com/idncsk/canvas/docindex"
	"github.com/idncsk/canvas/kvstore"
	"github.com/idncsk/canvas/layer"
)

var (
	// ErrNotFound is returned when an item is not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation collides with existing
	// state, such as renaming onto a taken name or re-creating a key.
	ErrConflict = errors.New("conflict")
)

// ErrInvalidArgument indicates a malformed caller input.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidArgument struct {
	Reason string
	cause  error
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

func (e *ErrInvalidArgument) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, layer.ErrNotFound) ||
		errors.Is(err, contexttree.ErrNotFound) ||
		errors.Is(err, bitmapstore.ErrNotFound) ||
		errors.Is(err, docindex.ErrNotFound) ||
		errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Conflict unification.
	if errors.Is(err, layer.ErrNameTaken) ||
		errors.Is(err, contexttree.ErrExists) ||
		errors.Is(err, bitmapstore.ErrKeyExists) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	// Argument normalization.
	var in *layer.ErrInvalidName
	if errors.As(err, &in) {
		return &ErrInvalidArgument{Reason: in.Error(), cause: err}
	}
	var id *docindex.ErrInvalidDocument
	if errors.As(err, &id) {
		return &ErrInvalidArgument{Reason: id.Error(), cause: err}
	}
	var iv *contexttree.ErrInvalidNode
	if errors.As(err, &iv) {
		return &ErrInvalidArgument{Reason: iv.Error(), cause: err}
	}

	return err
}

// Package docindex owns the document table and coordinates it with the
// context and feature bitmap stores, so that documents, context bitmaps
// and feature bitmaps stay mutually consistent.
package docindex

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// FirstOID is the lowest object identifier assigned to documents. The
// range below it is reserved for internal bookkeeping bitmaps.
const FirstOID uint32 = 1000

// Document is one stored record. Identity is the integer object
// identifier; at most one document exists per distinct content hash.
type Document struct {
	ID            uint32            `json:"id"`
	SchemaVersion string            `json:"schemaVersion"`
	Type          string            `json:"type"`
	Hashes        map[string]string `json:"hashes"`
	Data          map[string]any    `json:"data"`
}

// ErrInvalidDocument indicates a document that fails schema validation.
// Raised immediately, never silently defaulted.
type ErrInvalidDocument struct {
	Reason string
}

func (e *ErrInvalidDocument) Error() string {
	return fmt.Sprintf("invalid document: %s", e.Reason)
}

// Validate checks the document against its declared schema and fills in
// the schema version if absent.
func (d *Document) Validate() error {
	if d == nil {
		return &ErrInvalidDocument{Reason: "nil document"}
	}
	if d.Type == "" {
		return &ErrInvalidDocument{Reason: "missing type"}
	}
	if d.Data == nil {
		return &ErrInvalidDocument{Reason: "missing data payload"}
	}

	schema, ok := GetSchema(d.Type)
	if !ok {
		return &ErrInvalidDocument{Reason: fmt.Sprintf("unknown schema %q", d.Type)}
	}
	for _, field := range schema.Required {
		if _, present := d.Data[field]; !present {
			return &ErrInvalidDocument{Reason: fmt.Sprintf("schema %s requires field %q", schema.Type, field)}
		}
	}
	if d.SchemaVersion == "" {
		d.SchemaVersion = schema.Version
	}
	return nil
}

// ContentHash returns the sha1 content hash, computing and recording it
// if absent. encoding/json sorts map keys, so the digest is stable for
// equal payloads.
func (d *Document) ContentHash() (string, error) {
	if h, ok := d.Hashes["sha1"]; ok && h != "" {
		return h, nil
	}

	data, err := json.Marshal(d.Data)
	if err != nil {
		return "", fmt.Errorf("hash document payload: %w", err)
	}
	sum := sha1.Sum(data)
	h := hex.EncodeToString(sum[:])
	if d.Hashes == nil {
		d.Hashes = make(map[string]string, 1)
	}
	d.Hashes["sha1"] = h
	return h, nil
}

// ImplicitFeatures derives features from the document itself: the final
// segment of the schema type becomes a "type/" feature, so every note is
// discoverable under "type/note" without explicit tagging.
func (d *Document) ImplicitFeatures() []string {
	schema, ok := GetSchema(d.Type)
	if !ok {
		return nil
	}
	segments := strings.Split(schema.Type, "/")
	return []string{"type/" + segments[len(segments)-1]}
}

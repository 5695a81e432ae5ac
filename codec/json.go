package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Document records, layer records and tree snapshots are all map-like
// structures for which JSON is stable and portable. Persisted data is
// decoded with the same codec it was written with; there is currently a
// single built-in codec, so no name negotiation happens on load.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used when none is configured.
var Default Codec = JSON{}

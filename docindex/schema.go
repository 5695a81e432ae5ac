package docindex

import (
	"sort"
	"strings"
)

// Schema describes the expected shape of one document type. Validation is
// shallow: the declared required fields must be present in the data
// payload.
type Schema struct {
	Type     string
	Version  string
	Required []string
}

// Built-in schema registry, addressed by slash-delimited type path.
// Lookups tolerate an extra namespace prefix ("universe/data/abstr/note"
// resolves to "data/abstr/note").
var schemas = map[string]*Schema{
	"data/abstr/note": {
		Type:     "data/abstr/note",
		Version:  "2.0",
		Required: []string{"content"},
	},
	"data/abstr/tab": {
		Type:     "data/abstr/tab",
		Version:  "2.0",
		Required: []string{"url"},
	},
	"data/abstr/todo": {
		Type:     "data/abstr/todo",
		Version:  "2.0",
		Required: []string{"title"},
	},
	"data/abstr/file": {
		Type:     "data/abstr/file",
		Version:  "2.0",
		Required: []string{"path"},
	},
}

// ListSchemas returns the known schema type names, sorted.
func ListSchemas() []string {
	out := make([]string, 0, len(schemas))
	for t := range schemas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasSchema reports whether a schema exists for the given type.
func HasSchema(docType string) bool {
	_, ok := GetSchema(docType)
	return ok
}

// GetSchema resolves a schema by type, stripping one leading namespace
// segment if the full path has no direct match.
func GetSchema(docType string) (*Schema, bool) {
	if s, ok := schemas[docType]; ok {
		return s, true
	}
	if i := strings.Index(docType, "/"); i > 0 {
		if s, ok := schemas[docType[i+1:]]; ok {
			return s, true
		}
	}
	return nil, false
}

// Package schema defines the canonical shape of every step document and
// the migrator that lifts legacy payloads into it. Each step in the fixed
// sequence is described by a StepDefinition: named, weighted sections whose
// field slots drive the progress calculator, plus an ordered list of
// migrations for historical payload shapes.
package schema

import (
	"encoding/json"
	"strings"
)

// FieldKind classifies a field slot for emptiness checks.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindEnum   FieldKind = "enum"
	KindNumber FieldKind = "number"
	KindList   FieldKind = "list"
)

// Field is one scoreable slot. Path is a dotted path relative to the
// payload root, or relative to a record for collection sections.
type Field struct {
	Path    string
	Kind    FieldKind
	Options []string // valid values for KindEnum; empty accepts any non-blank value
}

// Section is a weighted group of fields. A section either lists plain
// Fields, or names a Collection key whose array records each contribute
// len(RecordFields) slots.
type Section struct {
	Key          string
	Label        string
	Weight       int
	Fields       []Field
	Collection   string
	RecordFields []Field
}

// Migration rewrites one historical payload shape into the canonical one.
// Apply must be idempotent: once the canonical marker exists it must not
// touch the payload again.
type Migration struct {
	Name  string
	Apply func(Payload) (Payload, bool)
}

// StepDefinition describes one step of the fixed sequence.
type StepDefinition struct {
	Number     int
	Key        string
	Name       string
	Sections   []Section
	Migrations []Migration
}

// CanonicalKeys returns the root keys the canonical shape may contain,
// including the extras bucket.
func (d *StepDefinition) CanonicalKeys() map[string]bool {
	keys := map[string]bool{extrasKey: true}
	for _, section := range d.Sections {
		if section.Collection != "" {
			keys[section.Collection] = true
			continue
		}
		for _, field := range section.Fields {
			root := field.Path
			if i := strings.IndexByte(root, '.'); i >= 0 {
				root = root[:i]
			}
			keys[root] = true
		}
	}
	return keys
}

// Payload is a decoded step document body.
type Payload map[string]any

// ParsePayload decodes raw JSON into a Payload. Empty input yields nil,
// which downstream components treat as an entirely empty document.
func ParsePayload(raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Encode serializes the payload back to JSON.
func (p Payload) Encode() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Clone deep-copies the payload via JSON round-trip; migrations never
// mutate the caller's map.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Payload{}
	}
	var out Payload
	if err := json.Unmarshal(raw, &out); err != nil {
		return Payload{}
	}
	return out
}

// Lookup resolves a dotted path against nested maps. The second return
// reports whether the path exists at all.
func (p Payload) Lookup(path string) (any, bool) {
	return lookupPath(map[string]any(p), path)
}

func lookupPath(node map[string]any, path string) (any, bool) {
	if node == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	current := any(node)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// LookupIn resolves a dotted path against an arbitrary record, used for
// collection section records.
func LookupIn(record any, path string) (any, bool) {
	m, ok := record.(map[string]any)
	if !ok {
		return nil, false
	}
	return lookupPath(m, path)
}

// IsEmptyValue reports whether a decoded JSON value counts as empty for
// scoring and migration purposes: blank strings, zero/negative numbers,
// empty arrays and maps, nil.
func IsEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return false
	case float64:
		return v <= 0
	case json.Number:
		f, err := v.Float64()
		return err != nil || f <= 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

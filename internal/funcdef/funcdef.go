// Package funcdef holds the persistent function definition record and the
// parameter schema vocabulary shared by the store, the prompt builder and the
// dispatcher.
package funcdef

// Property describes one field of a parameter schema. Nested objects and
// arrays reuse the same shape.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// Schema is the JSON-Schema-like object accepted by the definition tool:
// {type: "object", properties: {...}, required: [...]}.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Spec is what a caller asks for: everything a Definition has except the code.
type Spec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Definition is the persisted record for one synthesized function. Name is
// the unique store key and must be a bare identifier; Code is expected to
// bind a callable of that name. IsInternal marks reserved entries that
// survive a bulk clear.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
	Code        string `json:"code"`
	IsInternal  bool   `json:"is_internal"`
}

// ValidIdent reports whether name is a bare identifier: a letter or
// underscore followed by letters, digits or underscores.
func ValidIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

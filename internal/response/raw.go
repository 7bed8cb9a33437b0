package response

import (
	"encoding/json"
	"strings"
)

// RawKind discriminates Raw values.
type RawKind int

const (
	RawKindEmpty RawKind = iota
	RawKindText
	RawKindObject
)

// Raw is a provider response before normalization: a decoded JSON
// object, plain text, or nothing. The zero value is the absent
// response, which every normalizer maps to the empty canonical shape.
type Raw struct {
	Kind   RawKind
	Text   string
	Object map[string]any
}

// RawFromText wraps plain text. Empty text is the absent response.
func RawFromText(s string) Raw {
	if s == "" {
		return Raw{}
	}
	return Raw{Kind: RawKindText, Text: s}
}

// RawFromObject wraps a decoded JSON object. A nil map is the absent
// response.
func RawFromObject(m map[string]any) Raw {
	if m == nil {
		return Raw{}
	}
	return Raw{Kind: RawKindObject, Object: m}
}

// RawFromBytes decodes b as a JSON object when possible and falls
// back to plain text otherwise. Empty input is the absent response.
func RawFromBytes(b []byte) Raw {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return Raw{}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return Raw{Kind: RawKindObject, Object: obj}
	}
	return Raw{Kind: RawKindText, Text: trimmed}
}

// IsEmpty reports whether r is the absent response.
func (r Raw) IsEmpty() bool {
	return r.Kind == RawKindEmpty
}

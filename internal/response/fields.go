package response

import (
	"encoding/json"
	"strings"
)

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func mapField(m map[string]any, key string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	return asMap(m[key])
}

func sliceField(m map[string]any, key string) ([]any, bool) {
	if m == nil {
		return nil, false
	}
	s, ok := m[key].([]any)
	return s, ok
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch n := m[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringSliceField(m map[string]any, key string) []string {
	items, ok := sliceField(m, key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseArguments decodes tool call arguments. String sources are
// JSON-parsed; malformed JSON yields an empty map rather than an
// error.
func parseArguments(v any) map[string]any {
	switch a := v.(type) {
	case map[string]any:
		return a
	case string:
		if strings.TrimSpace(a) == "" {
			return map[string]any{}
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(a), &out); err != nil || out == nil {
			return map[string]any{}
		}
		return out
	default:
		return map[string]any{}
	}
}

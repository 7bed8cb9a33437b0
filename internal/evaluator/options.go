package evaluator

import (
	"encoding/json"
	"strings"
)

// Options carries an evaluator's configuration map, as attached to a
// test by its EvaluatorConfig.
type Options map[string]any

// String returns a trimmed string option, or "" when absent.
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return strings.TrimSpace(s)
}

// Bool returns a bool option, false when absent.
func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// Int returns an integer option.
func (o Options) Int(key string) (int, bool) {
	f, ok := o.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Float returns a numeric option.
func (o Options) Float(key string) (float64, bool) {
	if o == nil {
		return 0, false
	}
	return toFloat64(o[key])
}

// Strings returns a string list option. A single string counts as a
// one-element list.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Map returns a nested map option, or nil when absent.
func (o Options) Map(key string) map[string]any {
	m, _ := o[key].(map[string]any)
	return m
}

// MapOfMaps returns a nested map-of-maps option, such as per-function
// expected arguments.
func (o Options) MapOfMaps(key string) map[string]map[string]any {
	raw := o.Map(key)
	if raw == nil {
		return nil
	}
	out := make(map[string]map[string]any, len(raw))
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out[k] = m
		}
	}
	return out
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

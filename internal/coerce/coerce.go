// Package coerce converts loosely typed JSON values (as decoded into any) into
// concrete Go types. Upstream payloads and owner-supplied configs are not
// strictly typed, so numbers may arrive as strings and lists as single values.
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Float converts v to a finite float64. Numeric-looking strings are parsed;
// booleans, empty strings and non-numeric values are rejected.
func Float(v any) (float64, bool) {
	switch val := v.(type) {
	case nil, bool:
		return 0, false
	case float64:
		return val, isFinite(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, isFinite(f)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		v = trimmed
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, isFinite(f)
}

// Int converts v to an int when it holds an integral number
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Bool treats true, "true", "yes" and non-zero numbers as true
func Bool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

// String renders v as trimmed text. Objects and arrays are rendered as JSON.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case map[string]any, []any:
		bytes, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(bytes)
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(s)
}

// Strings converts a list (or a single scalar) into a list of non-empty trimmed
// strings, preserving order. nil yields nil.
func Strings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := String(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := String(val); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

// Map returns v as a JSON object
func Map(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Clamp01 bounds x to [0,1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

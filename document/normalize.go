package document

import (
	"math"

	"github.com/spf13/cast"
)

// Normalize rewrites decoder output into the node shapes the resolver
// understands: map[string]any, []any and scalars.
func Normalize(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = Normalize(value)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[cast.ToString(key)] = Normalize(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = Normalize(value)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = Normalize(value)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = value
		}
		return out
	case int64:
		if v >= math.MinInt && v <= math.MaxInt {
			return int(v)
		}
		return v
	default:
		return v
	}
}

// Clone deep copies mappings and sequences. Scalars are shared.
func Clone(node any) any {
	switch v := node.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = Clone(value)
		}
		return out
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = Clone(value)
		}
		return out
	default:
		return v
	}
}

// IsStructured reports whether node is a mapping or a sequence.
func IsStructured(node any) bool {
	switch node.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

package mapsafe

import (
	"math"
	"strconv"
)

// Get retrieves a typed value from a map[string]any such as a decoded YAML
// or JSON block. Integers may arrive as any Go integer kind or as a float64
// without a fractional part, and booleans as strconv-parsable strings. If
// the key is missing or the value cannot be converted, it returns the
// default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	val, ok := m[key]
	if !ok {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case int:
		if n, ok := toInt(val); ok {
			return any(n).(T)
		}
	case float64:
		switch x := val.(type) {
		case float64:
			return any(x).(T)
		case float32:
			return any(float64(x)).(T)
		}
		if n, ok := toInt(val); ok {
			return any(float64(n)).(T)
		}
	case string:
		if s, ok := val.(string); ok {
			return any(s).(T)
		}
	case bool:
		switch x := val.(type) {
		case bool:
			return any(x).(T)
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return any(b).(T)
			}
		}
	default:
		// fallback: if type matches exactly
		if v2, ok := val.(T); ok {
			return v2
		}
	}

	return defaultValue
}

func toInt(val any) (int, bool) {
	switch x := val.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) {
			return int(x), true
		}
	}

	return 0, false
}

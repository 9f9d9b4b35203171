package utils

import "encoding/json"

// Truthy reports the truth value of a decoded JSON value the way devices
// expect it: booleans as-is, numbers when non-zero, strings, arrays and
// objects when non-empty.  nil is false; callers treat it as "absent"
// before asking.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

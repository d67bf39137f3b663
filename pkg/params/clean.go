// Package params normalizes node parameters before they are sent to the
// Drata API: empty values are dropped and dates are rendered in the formats
// the API accepts.
package params

import (
	"fmt"
	"strconv"
)

// Clean returns a copy of m without nil values and empty strings.
// Zero numbers and false booleans are kept. The input map is not modified.
func Clean(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// IDString renders an entity id for use in a request path. JSON numbers
// decode as float64, so 12 renders as "12" rather than "12.0".
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	default:
		return fmt.Sprint(id)
	}
}

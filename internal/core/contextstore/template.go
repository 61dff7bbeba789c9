package contextstore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// placeholder matches {{path}}. Only paths are supported, no expressions.
var placeholder = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Interpolate replaces every {{path}} in tmpl with the stringified value at
// path. Missing paths render as the empty string; text outside placeholders
// and unterminated braces are left untouched.
func Interpolate(data map[string]interface{}, tmpl string) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := strings.TrimSpace(m[2 : len(m)-2])
		v, ok := Lookup(data, path)
		if !ok {
			return ""
		}
		return Stringify(v)
	})
}

// Stringify renders a context value for display. Composite values are
// rendered as JSON.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

package types

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ToString coerces a loosely-typed record value to a string.
// nil and empty values become "".
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		// Identifiers often arrive as float64 from JSON decoding; avoid
		// scientific notation for whole numbers.
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// ToBool coerces a loosely-typed record value to a bool.
// Recognizes bool, numeric 0/1, and "true"/"1" strings.
func ToBool(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case int:
		return b != 0
	case int64:
		return b != 0
	case float64:
		return b != 0
	case []byte:
		return toBoolString(string(b))
	case string:
		return toBoolString(b)
	default:
		return false
	}
}

func toBoolString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// IsEmpty reports whether a record value carries no information:
// nil, empty or whitespace-only string, or empty byte slice.
func IsEmpty(v interface{}) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	case []byte:
		return strings.TrimSpace(string(s)) == ""
	default:
		return false
	}
}

// ValuesEqual compares two loosely-typed record values. Maps and slices are
// compared structurally; everything else is compared by string coercion so
// that 42 and "42" from different store backends compare equal.
func ValuesEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if isStructural(a) || isStructural(b) {
		return reflect.DeepEqual(a, b)
	}
	return ToString(a) == ToString(b)
}

func isStructural(v interface{}) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		_, isBytes := v.([]byte)
		return !isBytes
	}
	return false
}

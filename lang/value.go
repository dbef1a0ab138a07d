package lang

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Precision is the number of decimal places kept when a number is
// written to CSS.
const Precision = 5

// decimalContext rounds numbers for output. It is never mutated.
//
//nolint:gochecknoglobals
var decimalContext = apd.BaseContext.WithPrecision(34)

// FormatNumber returns f rounded half-up to [Precision] decimal places,
// without trailing zeros or exponent.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	var d apd.Decimal
	if _, err := d.SetFloat64(f); err != nil {
		return strconv.FormatFloat(f, 'f', Precision, 64)
	}

	if _, err := decimalContext.Quantize(&d, &d, -Precision); err != nil {
		return strconv.FormatFloat(f, 'f', Precision, 64)
	}

	d.Reduce(&d)

	if d.IsZero() {
		return "0"
	}

	return d.Text('f')
}

// ToCSS returns the CSS text of a value. nil renders as the empty string.
func ToCSS(v any) string {
	switch v := v.(type) {
	case nil, unset:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return FormatNumber(v)
	case float32:
		return FormatNumber(float64(v))
	case []any:
		parts := make([]string, 0, len(v))

		for _, e := range v {
			if s := ToCSS(e); s != "" {
				parts = append(parts, s)
			}
		}

		return strings.Join(parts, ", ")
	case map[string]any:
		parts := make([]string, 0, len(v))

		for _, k := range slices.Sorted(maps.Keys(v)) {
			parts = append(parts, k+": "+ToCSS(v[k]))
		}

		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprint(v)
	}
}

// Truthy reports whether v counts as true in a condition. Only false and
// nil are false.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil, unset:
		return false
	case bool:
		return v
	default:
		return true
	}
}

// TypeOf returns the stylesheet type name of v.
func TypeOf(v any) string {
	switch v.(type) {
	case nil, unset:
		return "null"
	case bool:
		return "bool"
	case int, int64, float32, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ParseLiteral types literal text: integers, floats, booleans and null
// become the corresponding values; anything else stays a string.
func ParseLiteral(s string) any {
	t := strings.TrimSpace(s)

	switch t {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	if t == "" || strings.ContainsAny(t, "xXpP_") ||
		!strings.ContainsAny(t[:1], "+-.0123456789") {
		return s
	}

	if i, err := strconv.Atoi(t); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}

	return s
}

// toInt converts a numeric value to int, truncating floats.
func toInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	case string:
		if i, ok := ParseLiteral(v).(int); ok {
			return i, true
		}
	}

	return 0, false
}

// toFloat converts a numeric value to float64.
func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}

	return 0, false
}

// toList returns v as a list: lists are returned as is, nil is empty and
// anything else is a one-element list.
func toList(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

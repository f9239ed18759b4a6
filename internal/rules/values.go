package rules

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var floatRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// IsEmpty reports whether a cell holds no data: nil, NaN, or a string that is
// blank after trimming. Zero and false are values, not absences.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// TypeName returns the data-type name used by data-type constraints.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "none"
	case string:
		return "str"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case bool:
		return "bool"
	case []any, []string:
		return "list"
	case map[string]any:
		return "dict"
	}
	return fmt.Sprintf("%T", v)
}

func normalizeTypeName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "str", "string", "text":
		return "str"
	case "int", "integer":
		return "int"
	case "float", "double", "number", "decimal":
		return "float"
	case "bool", "boolean":
		return "bool"
	case "list", "array":
		return "list"
	case "dict", "object", "map":
		return "dict"
	case "none", "null":
		return "none"
	}
	return name
}

// coerceInt converts integral strings and floats to int. Anything else is
// returned unchanged.
func coerceInt(v any) any {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if floatRe.MatchString(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
				return int(f)
			}
		}
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) && x == math.Trunc(x) {
			return int(x)
		}
	case float32:
		f := float64(x)
		if !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f) {
			return int(f)
		}
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// valuesEqual compares a cell with a constraint value. When either side is
// a number the comparison is numeric, otherwise on the display form.
func valuesEqual(a, b any) bool {
	if isNumber(a) || isNumber(b) {
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		if okA && okB {
			return fa == fb
		}
	}
	return CleanValue(a) == CleanValue(b)
}

// CleanValue renders a cell for messages and reports. Missing values render
// as the empty string and integral floats lose their fraction.
func CleanValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(x)) {
			return ""
		}
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// FormatValue renders constraints and failed info: lists as "[a, b]",
// duplicate counts as "{value: count}".
func FormatValue(v any) string {
	switch x := v.(type) {
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[any]int:
		keys := make([]string, 0, len(x))
		byKey := make(map[string]int, len(x))
		for k, n := range x {
			s := CleanValue(k)
			keys = append(keys, s)
			byKey[s] = n
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %d", k, byKey[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return CleanValue(v)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// stringList decodes a constraint holding one string or a list of strings.
func stringList(c any) ([]string, error) {
	switch x := c.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{x}, nil
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expected string list element, got %T", ErrInvalidConstraint, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected string or list, got %T", ErrInvalidConstraint, c)
}

// anyList decodes a constraint holding a scalar or a list of scalars.
func anyList(c any) []any {
	switch x := c.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return []any{c}
}

// lengthBounds decodes a [min, max] constraint.
func lengthBounds(c any) (int, int, error) {
	list := anyList(c)
	if len(list) != 2 {
		return 0, 0, fmt.Errorf("%w: length constraint must be [min, max], got %v", ErrInvalidConstraint, c)
	}
	bounds := [2]int{}
	for i, e := range list {
		n, ok := coerceInt(e).(int)
		if !ok {
			return 0, 0, fmt.Errorf("%w: length bound %v is not an integer", ErrInvalidConstraint, e)
		}
		bounds[i] = n
	}
	if bounds[0] > bounds[1] {
		return 0, 0, fmt.Errorf("%w: length min %d greater than max %d", ErrInvalidConstraint, bounds[0], bounds[1])
	}
	return bounds[0], bounds[1], nil
}

// countKey makes a cell usable as a map key.
func countKey(v any) any {
	switch v.(type) {
	case []any, []string, map[string]any:
		return fmt.Sprint(v)
	}
	return v
}

package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Transform rewrites a cell before a rule sees it.
type Transform func(any) (any, error)

// Transforms is a named table of pre-validation transforms.
type Transforms map[string]Transform

// DefaultTransforms returns the built-in transform table.
func DefaultTransforms() Transforms {
	return Transforms{
		"upper_case": stringTransform(strings.ToUpper),
		"lower_case": stringTransform(strings.ToLower),
		"strip":      stringTransform(strings.TrimSpace),
		"normalise":  stringTransform(func(s string) string { return strings.Join(strings.Fields(s), " ") }),
		"str":        toStr,
		"int":        toInt,
		"float":      toFloatTransform,
	}
}

// With returns a copy of t that also holds fn under name.
func (t Transforms) With(name string, fn Transform) Transforms {
	out := make(Transforms, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	out[name] = fn
	return out
}

// Lookup resolves every name in order, failing on the first unknown one.
func (t Transforms) Lookup(names []string) ([]Transform, error) {
	out := make([]Transform, 0, len(names))
	for _, name := range names {
		fn, ok := t[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
		}
		out = append(out, fn)
	}
	return out, nil
}

// Chain applies transforms in order.
func Chain(v any, fns []Transform) (any, error) {
	var err error
	for _, fn := range fns {
		if v, err = fn(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func stringTransform(fn func(string) string) Transform {
	return func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return fn(CleanValue(v)), nil
	}
}

func toStr(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return CleanValue(v), nil
}

func toInt(v any) (any, error) {
	if IsEmpty(v) {
		return v, nil
	}
	n, ok := coerceInt(v).(int)
	if !ok {
		return nil, fmt.Errorf("cannot convert %q to int", CleanValue(v))
	}
	return n, nil
}

func toFloatTransform(v any) (any, error) {
	if IsEmpty(v) {
		return v, nil
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1.0, nil
		}
		return 0.0, nil
	}
	f, ok := toFloat(v)
	if !ok {
		if s, isStr := v.(string); isStr {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", ""), 64); err == nil {
				return f, nil
			}
		}
		return nil, fmt.Errorf("cannot convert %q to float", CleanValue(v))
	}
	return f, nil
}

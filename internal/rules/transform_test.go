package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransforms(t *testing.T) {
	tf := DefaultTransforms()
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"upper_case", "abc", "ABC"},
		{"lower_case", "AbC", "abc"},
		{"str", 12.0, "12"},
		{"strip", "  x  ", "x"},
		{"normalise", " a   b ", "a b"},
		{"int", "42", 42},
		{"float", "$1,200.50", 1200.5},
		{"upper_case", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tf[tt.name](tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransforms_LookupAndChain(t *testing.T) {
	tf := DefaultTransforms().With("reverse", func(v any) (any, error) {
		r := []rune(CleanValue(v))
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r), nil
	})

	fns, err := tf.Lookup([]string{"strip", "upper_case", "reverse"})
	require.NoError(t, err)

	got, err := Chain(" abc ", fns)
	require.NoError(t, err)
	assert.Equal(t, "CBA", got)

	_, err = tf.Lookup([]string{"strip", "title_case"})
	assert.True(t, errors.Is(err, ErrUnknownTransform))

	_, ok := DefaultTransforms()["reverse"]
	assert.False(t, ok, "With must not modify the receiver")
}

func TestTransforms_IntFailure(t *testing.T) {
	_, err := DefaultTransforms()["int"]("abc")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "abc"))
}

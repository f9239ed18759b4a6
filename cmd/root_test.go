package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, writeCompletion(rootCmd, shell, &out))
			assert.Contains(t, out.String(), "file-validator")
		})
	}

	err := writeCompletion(rootCmd, "tcsh", &bytes.Buffer{})
	assert.ErrorContains(t, err, "unsupported shell")
}

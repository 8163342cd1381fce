package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategiesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategies:\n  reviews: optimistic\n  settings: pessimistic\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"strategies", "--config", path})
	require.NoError(t, rootCmd.Execute())

	assert.Regexp(t, `inventory\s+pessimistic`, out.String())
	assert.Regexp(t, `reviews\s+optimistic`, out.String())
	assert.Regexp(t, `settings\s+pessimistic`, out.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "cartd dev")
}

package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aep/mintdb/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeNonPrintable(t *testing.T) {
	assert.Equal(t, "plain", EscapeNonPrintable([]byte("plain")))
	assert.Equal(t, `a\x00b\xff\x0a`, EscapeNonPrintable([]byte{'a', 0, 'b', 0xff, '\n'}))
	assert.Equal(t, "", EscapeNonPrintable(nil))
}

// setupPebble points the commands at a fresh pebble directory. Pebble
// refuses a second open while the store is still locked, so every command
// below only succeeds if the one before it closed its handle.
func setupPebble(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mintdb.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"backend: pebble\npath: "+filepath.Join(dir, "data")+"\nviolationPolicy: abort\n"), 0o600))

	prev := config.File
	config.File = cfgPath
	t.Cleanup(func() { config.File = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	CMD.SetArgs(args)
	CMD.SetOut(&out)
	CMD.SetErr(io.Discard)
	err := CMD.ExecuteContext(t.Context())
	return out.String(), err
}

func TestFailedCommandsReleaseTheStore(t *testing.T) {
	setupPebble(t)

	_, err := run(t, "get", "missing")
	require.ErrorIs(t, err, errNotFound)

	_, err = run(t, "put", "k", "v1")
	require.NoError(t, err, "store still locked after a failed get")

	out, err := run(t, "put", "k", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v1\n", out)

	batch := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte("- op: insert\n  key: a\n  value: x\n- op: delete\n  key: ghost\n"), 0o600))
	out, err = run(t, "apply", "--atomic", "-f", batch)
	require.Error(t, err)
	assert.Contains(t, out, "applied 0/2")

	out, err = run(t, "ls")
	require.NoError(t, err, "store still locked after a failed batch")
	assert.Equal(t, "k\tv2\n", out)
}

func TestBadArgumentIsAnError(t *testing.T) {
	setupPebble(t)

	_, err := run(t, "get", "hex:zz")
	require.Error(t, err)

	_, err = run(t, "del", "k")
	require.NoError(t, err)
}

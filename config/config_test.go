package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aep/mintdb/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "file.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pebble", cfg.Backend)
	assert.Equal(t, db.DefaultPartition, cfg.Partition)
	assert.Equal(t, "mintdb.events", cfg.Nats.Subject)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, `
backend: badger
path: /var/lib/mintdb
partition: wallet
violationPolicy: abort
cacheSize: 1000
logLevel: debug
nats:
  embedded: true
`)
	t.Setenv("PD_ENDPOINT", "pd:2379")
	t.Setenv("MINTDB_PATH", "/tmp/override")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Backend)
	assert.Equal(t, "/tmp/override", cfg.Path)
	assert.Equal(t, "wallet", cfg.Partition)
	assert.Equal(t, "pd:2379", cfg.PDEndpoint)
	assert.Equal(t, 1000, cfg.CacheSize)
	assert.True(t, cfg.Nats.Embedded)
	assert.Equal(t, "mintdb.events", cfg.Nats.Subject, "unset fields keep their defaults")

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	assert.Len(t, cfg.HandleOptions(), 3)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for _, content := range []string{
		"backend: floppy",
		"violationPolicy: sometimes",
		"logLevel: loud",
		"cacheSize: -1",
		"partition: ''",
	} {
		_, err := Load(writeFile(t, content))
		require.Error(t, err, content)
	}
}

func TestParseBatch(t *testing.T) {
	batch, err := ParseBatch([]byte(`
- op: insert_new
  key: a
  value: "1"
- op: delete
  key: hex:00ff
---
- op: maybe_delete
  key: c
`))
	require.NoError(t, err)
	require.Equal(t, db.Batch{
		db.InsertNew{Key: []byte("a"), Value: []byte("1")},
		db.Delete{Key: []byte{0x00, 0xff}},
		db.MaybeDelete{Key: []byte("c")},
	}, batch)
}

func TestParseBatchErrors(t *testing.T) {
	_, err := ParseBatch([]byte("- op: explode\n  key: a\n"))
	require.Error(t, err)

	_, err = ParseBatch([]byte("- op: insert\n  key: hex:zz\n"))
	require.Error(t, err)
}

func TestOpenHandle(t *testing.T) {
	cfg := Default()
	cfg.Backend = "mem"
	cfg.Partition = "wallet"
	cfg.CacheSize = 8

	h, err := cfg.OpenHandle(t.Context())
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "wallet", h.Name())
	_, _, err = h.Insert(t.Context(), []byte("k"), []byte("v"))
	require.NoError(t, err)

	cfg.Partition = "no spaces"
	_, err = cfg.OpenHandle(t.Context())
	require.ErrorIs(t, err, db.ErrOpenFailed)
}

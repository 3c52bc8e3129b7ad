package db

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aep/mintdb/kv"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected fault")

// faultKV wraps a store and fails selected operations.
type faultKV struct {
	kv.KV

	pingErr    error
	writeErr   error
	failPut    func(key []byte) bool
	failCommit func(n int32) bool
	commits    atomic.Int32
}

type faultWrite struct {
	kv.Write
	f *faultKV
}

func (f *faultKV) Ping() error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.KV.Ping()
}

func (f *faultKV) Write(ctx context.Context) (kv.Write, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	w, err := f.KV.Write(ctx)
	if err != nil {
		return nil, err
	}
	return &faultWrite{Write: w, f: f}, nil
}

func (w *faultWrite) Put(key, value []byte) error {
	if w.f.failPut != nil && w.f.failPut(key) {
		return errInjected
	}
	return w.Write.Put(key, value)
}

func (w *faultWrite) Commit(ctx context.Context) error {
	n := w.f.commits.Add(1)
	if w.f.failCommit != nil && w.f.failCommit(n) {
		w.Write.Rollback()
		return errInjected
	}
	return w.Write.Commit(ctx)
}

func stores(t *testing.T) map[string]func(t *testing.T) kv.KV {
	return map[string]func(t *testing.T) kv.KV{
		"mem": func(t *testing.T) kv.KV { return kv.NewMem() },
		"pebble": func(t *testing.T) kv.KV {
			k, err := kv.NewPebble("")
			require.NoError(t, err)
			return k
		},
		"badger": func(t *testing.T) kv.KV {
			k, err := kv.NewBadger("")
			require.NoError(t, err)
			return k
		},
	}
}

// forEachStore runs fn against a fresh partition on every embedded backend.
func forEachStore(t *testing.T, fn func(t *testing.T, h *Handle)) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			h, err := Open(t.Context(), open(t), DefaultPartition, WithOwnedStore())
			require.NoError(t, err)
			defer h.Close()
			fn(t, h)
		})
	}
}

func openMem(t *testing.T, opts ...Option) *Handle {
	h, err := Open(t.Context(), kv.NewMem(), DefaultPartition, append(opts, WithOwnedStore())...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func openFaulty(t *testing.T, f *faultKV, opts ...Option) *Handle {
	if f.KV == nil {
		f.KV = kv.NewMem()
	}
	h, err := Open(t.Context(), f, DefaultPartition, append(opts, WithOwnedStore())...)
	require.NoError(t, err)
	// commits made while opening do not count
	f.commits.Store(0)
	t.Cleanup(h.Close)
	return h
}

func mustGet(t *testing.T, h *Handle, key string) (string, bool) {
	v, ok, err := h.Get(t.Context(), []byte(key))
	require.NoError(t, err)
	return string(v), ok
}

func mustInsert(t *testing.T, h *Handle, key, value string) {
	_, _, err := h.Insert(t.Context(), []byte(key), []byte(value))
	require.NoError(t, err)
}

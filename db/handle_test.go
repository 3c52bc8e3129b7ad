package db

import (
	"context"
	"sync"
	"testing"

	"github.com/aep/mintdb/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsInvalidNames(t *testing.T) {
	for _, name := range []string{"", "has space", "slash/y", string(make([]byte, 65)), "tab\t"} {
		_, err := Open(t.Context(), kv.NewMem(), name)
		require.ErrorIs(t, err, ErrOpenFailed, "name %q", name)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	store := kv.NewMem()
	defer store.Close()

	h1, err := Open(t.Context(), store, "wallet")
	require.NoError(t, err)
	mustInsert(t, h1, "k", "v")
	h1.Close()

	h2, err := Open(t.Context(), store, "wallet")
	require.NoError(t, err)
	defer h2.Close()

	assert.True(t, h1.CreatedAt().Equal(h2.CreatedAt()))
	v, ok := mustGet(t, h2, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestPartitionsAreIsolated(t *testing.T) {
	store := kv.NewMem()
	defer store.Close()

	a, err := Open(t.Context(), store, "a")
	require.NoError(t, err)
	ab, err := Open(t.Context(), store, "ab")
	require.NoError(t, err)

	mustInsert(t, a, "k", "from-a")
	mustInsert(t, ab, "k", "from-ab")

	v, _ := mustGet(t, a, "k")
	assert.Equal(t, "from-a", v)

	entries, err := a.ScanPrefix(t.Context(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "from-a", string(entries[0].Value))
}

func TestOpenFailsWhenStoreIsDown(t *testing.T) {
	_, err := Open(t.Context(), &faultKV{KV: kv.NewMem(), pingErr: errInjected}, DefaultPartition)
	require.ErrorIs(t, err, ErrOpenFailed)
	require.ErrorIs(t, err, errInjected)
}

func TestOpenCorruptMarker(t *testing.T) {
	store := kv.NewMem()
	defer store.Close()

	w, err := store.Write(t.Context())
	require.NoError(t, err)
	require.NoError(t, w.Put(markerKey("broken"), []byte{1, 2, 3}))
	require.NoError(t, w.Commit(t.Context()))

	_, err = Open(t.Context(), store, "broken")
	require.ErrorIs(t, err, ErrCodecMismatch)
}

func TestClosedHandle(t *testing.T) {
	store := kv.NewMem()
	h, err := Open(t.Context(), store, DefaultPartition, WithOwnedStore())
	require.NoError(t, err)
	h.Close()
	h.Close()

	_, _, err = h.Get(t.Context(), []byte("k"))
	require.ErrorIs(t, err, ErrClosed)
	_, err = h.ScanPrefix(t.Context(), nil)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, store.Ping(), kv.ErrClosed)
}

func TestTransactionAcquireFailure(t *testing.T) {
	f := &faultKV{}
	h := openFaulty(t, f)
	f.writeErr = errInjected

	_, _, err := h.Insert(t.Context(), []byte("k"), []byte("v"))
	require.ErrorIs(t, err, ErrTransactionFailed)
	require.NotErrorIs(t, err, ErrCommitFailed)
}

func TestCommitFailureDiscardsResult(t *testing.T) {
	f := &faultKV{}
	h := openFaulty(t, f)
	f.failCommit = func(n int32) bool { return n == 1 }

	prev, existed, err := h.Insert(t.Context(), []byte("k"), []byte("v"))
	require.ErrorIs(t, err, ErrCommitFailed)
	require.ErrorIs(t, err, ErrTransactionFailed)
	assert.Nil(t, prev)
	assert.False(t, existed)

	_, ok := mustGet(t, h, "k")
	assert.False(t, ok)
}

func TestConcurrentInsertsAreSerialized(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *Handle) {
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := h.Insert(context.Background(), []byte("shared"), []byte{byte(i)})
				if err != nil {
					// optimistic backends may reject a conflicting commit
					assert.ErrorIs(t, err, ErrCommitFailed)
				}
			}()
		}
		wg.Wait()

		_, ok := mustGet(t, h, "shared")
		assert.True(t, ok)
	})
}

func TestEventsArePublishedAfterCommit(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	n := NotifierFunc(func(ctx context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	})
	h := openMem(t, WithNotifier(n))

	mustInsert(t, h, "k", "v")
	_, _, err := h.Remove(t.Context(), []byte("k"))
	require.NoError(t, err)
	_, err = h.Apply(t.Context(), Batch{Delete{Key: []byte("k")}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Event{
		{Partition: DefaultPartition, Op: OpInsert, Key: []byte("k"), Existed: false},
		{Partition: DefaultPartition, Op: OpRemove, Key: []byte("k"), Existed: true},
		{Partition: DefaultPartition, Op: OpRemove, Key: []byte("k"), Existed: false},
		{Partition: DefaultPartition, Op: OpViolation, Key: []byte("k"), Existed: false},
	}, events)
}

func TestEventsAreNotPublishedOnCommitFailure(t *testing.T) {
	var published int
	f := &faultKV{}
	h := openFaulty(t, f, WithNotifier(NotifierFunc(func(ctx context.Context, ev Event) error {
		published++
		return nil
	})))
	f.failCommit = func(n int32) bool { return true }

	_, _, err := h.Insert(t.Context(), []byte("k"), []byte("v"))
	require.Error(t, err)
	assert.Zero(t, published)
}

func TestNotifierErrorsDoNotFailOperations(t *testing.T) {
	h := openMem(t, WithNotifier(NotifierFunc(func(ctx context.Context, ev Event) error {
		return errInjected
	})))
	_, _, err := h.Insert(t.Context(), []byte("k"), []byte("v"))
	require.NoError(t, err)
}

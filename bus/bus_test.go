package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aep/mintdb/db"
	"github.com/aep/mintdb/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestSoloBusPubSub(t *testing.T) {
	b := NewSolo()
	defer b.Close()

	a, err := b.Recv("topic1")
	require.NoError(t, err)
	c, err := b.Recv("topic1")
	require.NoError(t, err)
	other, err := b.Recv("topic2")
	require.NoError(t, err)

	require.NoError(t, b.Send("topic1", []byte("test message")))

	assert.Equal(t, "test message", string(recvOne(t, a)))
	assert.Equal(t, "test message", string(recvOne(t, c)))
	assert.Empty(t, other)
}

func TestSoloBusClose(t *testing.T) {
	b := NewSolo()
	ch, err := b.Recv("topic")
	require.NoError(t, err)

	b.Close()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, b.Send("topic", nil), ErrClosed)
	_, err = b.Recv("topic")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSoloBusDropsWhenFull(t *testing.T) {
	b := NewSolo()
	defer b.Close()

	ch, err := b.Recv("topic")
	require.NoError(t, err)
	for range soloBuffer + 10 {
		require.NoError(t, b.Send("topic", []byte("x")))
	}
	assert.Len(t, ch, soloBuffer)
}

func TestNotifierPublishesHandleEvents(t *testing.T) {
	b := NewSolo()
	defer b.Close()

	n := &Notifier{Bus: b, Subject: "mintdb.events"}
	inserts, err := b.Recv("mintdb.events.default.insert")
	require.NoError(t, err)

	h, err := db.Open(t.Context(), kv.NewMem(), db.DefaultPartition, db.WithNotifier(n), db.WithOwnedStore())
	require.NoError(t, err)
	defer h.Close()

	_, _, err = h.Insert(t.Context(), []byte("k"), []byte("v"))
	require.NoError(t, err)

	var ev db.Event
	require.NoError(t, json.Unmarshal(recvOne(t, inserts), &ev))
	assert.Equal(t, db.Event{Partition: db.DefaultPartition, Op: db.OpInsert, Key: []byte("k")}, ev)
}

func TestNatsEmbedded(t *testing.T) {
	s, err := NewEmbeddedNats(EmbeddedOptions{Port: -1, StoreDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Shutdown()

	n, err := ConnectNats(s.ClientURL())
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.EnsureStream("mintdb.events"))
	require.NoError(t, n.EnsureStream("mintdb.events"), "stream creation is idempotent")

	ch, err := n.Recv("mintdb.events.>")
	require.NoError(t, err)

	notifier := &Notifier{Bus: n, Subject: "mintdb.events"}
	ev := db.Event{Partition: "p", Op: db.OpRemove, Key: []byte{0xff}, Existed: true}
	require.NoError(t, notifier.Publish(t.Context(), ev))

	var got db.Event
	require.NoError(t, json.Unmarshal(recvOne(t, ch), &got))
	assert.Equal(t, ev, got)
}

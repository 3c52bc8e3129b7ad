package db

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   []byte
	}{
		{name: "empty", prefix: []byte{}, want: nil},
		{name: "nil", prefix: nil, want: nil},
		{name: "simple", prefix: []byte("ab"), want: []byte("ac")},
		{name: "single", prefix: []byte{0x42}, want: []byte{0x43}},
		{name: "trailing_max_carries", prefix: []byte{0x01, 0xff}, want: []byte{0x02}},
		{name: "many_trailing_max", prefix: []byte{0x01, 0xfe, 0xff, 0xff}, want: []byte{0x01, 0xff}},
		{name: "all_max_unbounded", prefix: []byte{0xff, 0xff}, want: nil},
		{name: "zero_byte", prefix: []byte{0x00}, want: []byte{0x01}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := bytes.Clone(tc.prefix)
			got := PrefixEnd(in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.prefix, in, "input must not be modified")
		})
	}
}

func TestScanPrefixCompleteness(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *Handle) {
		keys := [][]byte{
			{0x41},
			{0x42},
			{0x42, 0x00},
			{0x42, 0x01, 0x02},
			{0x42, 0xff},
			{0x42, 0xff, 0x00},
			{0x42, 0xff, 0xff},
			{0x43},
			{0xff},
			{0xff, 0x01},
		}
		for _, k := range keys {
			_, _, err := h.Insert(t.Context(), k, append([]byte("v"), k...))
			require.NoError(t, err)
		}

		prefixes := [][]byte{
			{},
			{0x42},
			{0x42, 0xff},
			{0x42, 0xff, 0xff},
			{0xff},
			{0x44},
		}
		for _, p := range prefixes {
			var want [][]byte
			for _, k := range keys {
				if bytes.HasPrefix(k, p) {
					want = append(want, k)
				}
			}
			sort.Slice(want, func(i, j int) bool { return bytes.Compare(want[i], want[j]) < 0 })

			entries, err := h.ScanPrefix(t.Context(), p)
			require.NoError(t, err)

			var got [][]byte
			for _, e := range entries {
				got = append(got, e.Key)
				assert.Equal(t, append([]byte("v"), e.Key...), e.Value)
			}
			assert.Equal(t, want, got, "prefix %x", p)
		}
	})
}

func TestScanEmptyPrefixReturnsEverything(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *Handle) {
		mustInsert(t, h, "b", "2")
		mustInsert(t, h, "a", "1")
		mustInsert(t, h, "c", "3")

		entries, err := h.ScanPrefix(t.Context(), nil)
		require.NoError(t, err)
		require.Equal(t, []Entry{
			{Key: []byte("a"), Value: []byte("1")},
			{Key: []byte("b"), Value: []byte("2")},
			{Key: []byte("c"), Value: []byte("3")},
		}, entries)
	})
}

func TestScanMaxBytePrefix(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *Handle) {
		key := []byte{0x10, 0xff}
		_, _, err := h.Insert(t.Context(), key, []byte("edge"))
		require.NoError(t, err)
		_, _, err = h.Insert(t.Context(), []byte{0x11}, []byte("next"))
		require.NoError(t, err)

		entries, err := h.ScanPrefix(t.Context(), []byte{0x10, 0xff})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, key, entries[0].Key)
	})
}

func TestScanNoMatchIsEmpty(t *testing.T) {
	h := openMem(t)
	mustInsert(t, h, "a", "1")

	entries, err := h.ScanPrefix(t.Context(), []byte("z"))
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

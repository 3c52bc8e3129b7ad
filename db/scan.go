package db

import (
	"bytes"
	"context"
	"fmt"
)

type Entry struct {
	Key   []byte
	Value []byte
}

// PrefixEnd returns the smallest key greater than every key that starts
// with prefix, or nil if there is no such key and the range is unbounded
// above. Trailing 0xff bytes carry into the byte before them.
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// ScanPrefix returns every entry whose key starts with prefix, in ascending
// key order. All matches are read inside one transaction before returning.
// An empty prefix reads the whole partition.
func (h *Handle) ScanPrefix(ctx context.Context, prefix []byte) ([]Entry, error) {
	if len(prefix) == 0 {
		h.log.Debug("scanning whole partition")
	}

	var entries []Entry
	err := h.withTransaction(ctx, "scan", func(ctx context.Context, s *scope) error {
		var err error
		entries, err = s.scan(ctx, prefix)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *scope) scan(ctx context.Context, prefix []byte) ([]Entry, error) {
	lower := s.key(prefix)
	upper := PrefixEnd(lower)

	entries := []Entry{}
	for kv, err := range s.w.Iter(ctx, lower, upper) {
		if err != nil {
			return nil, storageError(TransactionFailed, s.op, prefix, err)
		}
		if !bytes.HasPrefix(kv.K, lower) {
			return nil, &StorageError{Kind: CodecMismatch, Op: s.op, Key: kv.K,
				Err: fmt.Errorf("store returned key outside of range [%x, %x)", lower, upper)}
		}
		entries = append(entries, Entry{
			Key:   bytes.Clone(kv.K[len(s.h.ns):]),
			Value: bytes.Clone(kv.V),
		})
	}
	return entries, nil
}

package kv

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound is returned by Get when the key holds no value.
// Backends never signal absence with a nil or empty value.
var ErrNotFound = errors.New("kv: key not found")

// ErrClosed is returned when the store has been closed.
var ErrClosed = errors.New("kv: store is closed")

type KeyAndValue struct {
	K []byte
	V []byte
}

// KV is the host storage primitive: an ordered byte keyspace with
// read-write transactions.
type KV interface {
	Close()
	Write(ctx context.Context) (Write, error)
	Ping() error
}

type Read interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Iter walks [start, end) in ascending key order. A nil end is unbounded.
	Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error]
	Close()
}

type Write interface {
	Read
	Put(key []byte, value []byte) error
	Del(key []byte) error
	Commit(ctx context.Context) error
	Rollback() error
}

// Package db is a byte oriented key-value store over a transactional
// host store. A Handle owns one named partition of the host keyspace and
// runs every operation in its own read-write transaction.
package db

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aep/mintdb/kv"
)

const DefaultPartition = "default"

type Handle struct {
	kv       kv.KV
	name     string
	ns       []byte
	created  time.Time
	closed   atomic.Bool
	ownStore bool

	policy    ViolationPolicy
	cacheSize int
	cache     *valueCache
	notifier  Notifier
	log       *slog.Logger
}

type Option func(*Handle)

// WithViolationPolicy selects how Apply reacts to existence violations.
func WithViolationPolicy(p ViolationPolicy) Option {
	return func(h *Handle) { h.policy = p }
}

// WithCache keeps up to capacity present values in memory. Only correct
// while this Handle is the single writer of its partition.
func WithCache(capacity int) Option {
	return func(h *Handle) { h.cacheSize = capacity }
}

func WithNotifier(n Notifier) Option {
	return func(h *Handle) { h.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handle) { h.log = l }
}

// WithOwnedStore makes Close also close the host store.
func WithOwnedStore() Option {
	return func(h *Handle) { h.ownStore = true }
}

func validateName(name string) error {
	if len(name) < 1 {
		return fmt.Errorf("partition name must not be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("partition name must be less than 64 bytes")
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char == '.') ||
			(char == '-') ||
			(char >= '0' && char <= '9')) {
			return fmt.Errorf("partition name has invalid character: %c", char)
		}
	}
	return nil
}

func partitionPrefix(name string) []byte {
	return []byte(fmt.Sprintf("p\xff%s\xff", name))
}

func markerKey(name string) []byte {
	return []byte(fmt.Sprintf("m\xff%s\xff", name))
}

// Open opens the partition called name in store, creating it if absent.
// Opening the same name again observes the same persisted state.
func Open(ctx context.Context, store kv.KV, name string, opts ...Option) (*Handle, error) {
	if err := validateName(name); err != nil {
		return nil, &StorageError{Kind: OpenFailed, Op: "open", Err: err}
	}

	h := &Handle{
		kv:     store,
		name:   name,
		ns:     partitionPrefix(name),
		policy: ContinueOnViolation,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("partition", name)

	if h.cacheSize > 0 {
		c, err := newValueCache(h.cacheSize)
		if err != nil {
			return nil, &StorageError{Kind: OpenFailed, Op: "open", Err: err}
		}
		h.cache = c
	}

	if err := store.Ping(); err != nil {
		h.cache.close()
		return nil, &StorageError{Kind: OpenFailed, Op: "open", Err: err}
	}

	err := h.withTransaction(ctx, "open", func(ctx context.Context, s *scope) error {
		marker := markerKey(name)
		v, err := s.w.Get(ctx, marker)
		if errors.Is(err, kv.ErrNotFound) {
			h.created = time.Now()
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(h.created.UnixNano()))
			return s.w.Put(marker, b[:])
		}
		if err != nil {
			return err
		}
		if len(v) != 8 {
			return &StorageError{Kind: CodecMismatch, Op: "open", Key: marker,
				Err: fmt.Errorf("partition marker is %d bytes, want 8", len(v))}
		}
		h.created = time.Unix(0, int64(binary.BigEndian.Uint64(v)))
		return nil
	})
	if err != nil {
		h.cache.close()
		if errors.Is(err, ErrCodecMismatch) {
			return nil, err
		}
		return nil, &StorageError{Kind: OpenFailed, Op: "open", Err: err}
	}

	h.log.Debug("partition opened", "created", h.created)
	return h, nil
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) CreatedAt() time.Time {
	return h.created
}

func (h *Handle) Ping() error {
	if h.closed.Load() {
		return ErrClosed
	}
	return h.kv.Ping()
}

func (h *Handle) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.cache.close()
	if h.ownStore {
		h.kv.Close()
	}
}

package db

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/aep/mintdb/kv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/aep/mintdb/db")

// scope is one read-write transaction against the partition. Keys passed
// to it are relative to the partition.
type scope struct {
	h  *Handle
	w  kv.Write
	op string

	// committed effects, replayed into the cache and the notifier
	pending []pendingWrite
	events  []Event

	rollback bool
}

type pendingWrite struct {
	key     []byte
	value   []byte
	deleted bool
}

func (s *scope) key(k []byte) []byte {
	out := make([]byte, 0, len(s.h.ns)+len(k))
	out = append(out, s.h.ns...)
	return append(out, k...)
}

func (s *scope) get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v, err := s.w.Get(ctx, s.key(key))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageError(TransactionFailed, s.op, key, err)
	}
	if v == nil {
		return nil, false, &StorageError{Kind: CodecMismatch, Op: s.op, Key: key,
			Err: errors.New("store returned a nil value for a present key")}
	}
	return v, true, nil
}

func (s *scope) put(key, value []byte) error {
	if err := s.w.Put(s.key(key), value); err != nil {
		return storageError(TransactionFailed, s.op, key, err)
	}
	s.pending = append(s.pending, pendingWrite{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (s *scope) del(key []byte) error {
	if err := s.w.Del(s.key(key)); err != nil {
		return storageError(TransactionFailed, s.op, key, err)
	}
	s.pending = append(s.pending, pendingWrite{key: bytes.Clone(key), deleted: true})
	return nil
}

func (s *scope) emit(ev Event) {
	s.events = append(s.events, ev)
}

// withTransaction runs fn inside a single read-write transaction and
// finalizes it on every exit path. The transaction is committed unless fn
// asked for a rollback. A failed commit replaces fn's result.
func (h *Handle) withTransaction(ctx context.Context, op string, fn func(ctx context.Context, s *scope) error) error {
	if h.closed.Load() {
		return ErrClosed
	}

	ctx, span := tracer.Start(ctx, "db.Handle."+op)
	defer span.End()
	span.SetAttributes(attribute.String("db.partition", h.name))

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &StorageError{Kind: TransactionFailed, Op: op, Err: err}
	}

	w, err := h.kv.Write(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &StorageError{Kind: TransactionFailed, Op: op, Err: err}
	}
	defer w.Close()

	s := &scope{h: h, w: w, op: op}
	opErr := fn(ctx, s)

	// a caller that gave up before commit never sees its writes applied
	if err := ctx.Err(); err != nil {
		s.rollback = true
		opErr = &StorageError{Kind: TransactionFailed, Op: op, Err: err}
	}

	if s.rollback {
		if err := w.Rollback(); err != nil {
			h.log.Warn("rollback failed", "op", op, "err", err)
		}
		if opErr != nil {
			span.SetStatus(codes.Error, opErr.Error())
		}
		return opErr
	}

	// commit is not cancellable once started
	start := time.Now()
	err = w.Commit(context.WithoutCancel(ctx))
	commitDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		commitFailures.WithLabelValues(op).Inc()
		h.cache.apply(s.pending, true)
		span.SetStatus(codes.Error, err.Error())
		h.log.Warn("commit failed", "op", op, "err", err)
		return &StorageError{Kind: CommitFailed, Op: op, Err: err}
	}

	h.cache.apply(s.pending, false)
	for _, ev := range s.events {
		h.publish(ctx, ev)
	}

	if opErr != nil {
		span.SetStatus(codes.Error, opErr.Error())
	}
	return opErr
}

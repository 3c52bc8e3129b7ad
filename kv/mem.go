package kv

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/tidwall/btree"
)

const memDegree = 32

func byKey(a, b KeyAndValue) bool {
	return bytes.Compare(a.K, b.K) < 0
}

// Mem is an in-memory store ordered by a copy-on-write btree.
// A write transaction takes a private copy of the tree and swaps it in on
// commit. Writers are serialized for the lifetime of the transaction.
type Mem struct {
	globalWriteLock writeLock

	tree   atomic.Pointer[btree.BTreeG[KeyAndValue]]
	closed atomic.Bool
}

type MemWrite struct {
	m        *Mem
	tree     *btree.BTreeG[KeyAndValue]
	err      error
	commited bool
	done     bool
}

func NewMem() *Mem {
	m := &Mem{globalWriteLock: newWriteLock()}
	m.tree.Store(btree.NewBTreeGOptions(byKey, btree.Options{
		Degree:  memDegree,
		NoLocks: true,
	}))
	return m
}

func (m *Mem) Close() {
	m.closed.Store(true)
}

func (m *Mem) Ping() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (m *Mem) Write(ctx context.Context) (Write, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if err := m.globalWriteLock.lock(ctx); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		m.globalWriteLock.unlock()
		return nil, ErrClosed
	}
	return &MemWrite{m: m, tree: m.tree.Load().Copy()}, nil
}

// Len returns the number of committed keys.
func (m *Mem) Len() int {
	return m.tree.Load().Len()
}

func (w *MemWrite) release() {
	if !w.done {
		w.done = true
		w.m.globalWriteLock.unlock()
	}
}

func (w *MemWrite) usable() error {
	if w.err != nil {
		return w.err
	}
	if w.done {
		return fmt.Errorf("transaction already finished")
	}
	if w.m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (w *MemWrite) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := w.usable(); err != nil {
		return nil, err
	}
	item, ok := w.tree.Get(KeyAndValue{K: key})
	if !ok {
		log.Debug("[mem].Get:", "key", string(key), "err", "not found")
		return nil, ErrNotFound
	}
	log.Debug("[mem].Get:", "key", string(key))
	return bytes.Clone(item.V), nil
}

func (w *MemWrite) Put(key []byte, value []byte) error {
	if err := w.usable(); err != nil {
		return err
	}
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	w.tree.Set(KeyAndValue{K: bytes.Clone(key), V: v})
	log.Debug("[mem].Put:", "key", string(key))
	return nil
}

func (w *MemWrite) Del(key []byte) error {
	if err := w.usable(); err != nil {
		return err
	}
	w.tree.Delete(KeyAndValue{K: key})
	return nil
}

func (w *MemWrite) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	return func(yield func(KeyAndValue, error) bool) {
		if err := w.usable(); err != nil {
			yield(KeyAndValue{}, err)
			return
		}
		w.tree.Ascend(KeyAndValue{K: start}, func(item KeyAndValue) bool {
			if len(end) > 0 && bytes.Compare(item.K, end) >= 0 {
				return false
			}
			if err := ctx.Err(); err != nil {
				yield(KeyAndValue{}, err)
				return false
			}
			log.Debug("[mem].Iter:", "start", string(start), "end", string(end), "at", string(item.K))
			return yield(KeyAndValue{K: bytes.Clone(item.K), V: bytes.Clone(item.V)}, nil)
		})
	}
}

func (w *MemWrite) Commit(ctx context.Context) error {
	if err := w.usable(); err != nil {
		w.release()
		return err
	}
	w.m.tree.Store(w.tree)
	w.commited = true
	w.release()
	return nil
}

func (w *MemWrite) Rollback() error {
	if w.commited {
		return fmt.Errorf("already commited")
	}
	w.release()
	return w.err
}

func (w *MemWrite) Close() {
	if !w.commited {
		w.Rollback()
	}
}

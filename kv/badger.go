package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
)

type Badgerdb struct {
	db *badger.DB
}

// BadgerWrite is an optimistic badger transaction. Conflicting commits
// fail with badger.ErrConflict.
type BadgerWrite struct {
	txn      *badger.Txn
	err      error
	commited bool
	done     bool
}

func (w *BadgerWrite) Commit(ctx context.Context) error {
	if w.err != nil {
		return w.err
	}
	if w.commited {
		return fmt.Errorf("already commited")
	}
	w.done = true
	err := w.txn.Commit()
	if err != nil {
		w.err = err
		return err
	}
	w.commited = true
	return nil
}

func (w *BadgerWrite) Rollback() error {
	if w.commited {
		return fmt.Errorf("already commited")
	}
	if !w.done {
		w.done = true
		w.txn.Discard()
	}
	return w.err
}

func (w *BadgerWrite) Put(key []byte, value []byte) error {
	if w.err != nil {
		return w.err
	}
	// badger keeps references to the slices until commit
	err := w.txn.Set(bytes.Clone(key), append([]byte{}, value...))
	if err != nil {
		w.Rollback()
		w.err = err
	}
	log.Debug("[badger].Put:", "key", string(key), "err", err)
	return w.err
}

func (w *BadgerWrite) Get(ctx context.Context, key []byte) ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	item, err := w.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			log.Debug("[badger].Get:", "key", string(key), "err", "not found")
			return nil, ErrNotFound
		}
		log.Debug("[badger].Get:", "key", string(key), "err", err)
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if val == nil {
		val = []byte{}
	}
	log.Debug("[badger].Get:", "key", string(key))
	return val, nil
}

func (w *BadgerWrite) Del(key []byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.txn.Delete(bytes.Clone(key))
	if err != nil {
		w.Rollback()
		w.err = err
	}
	return w.err
}

func (w *BadgerWrite) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	return func(yield func(KeyAndValue, error) bool) {
		if w.err != nil {
			yield(KeyAndValue{}, w.err)
			return
		}
		it := w.txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(start); it.Valid(); it.Next() {
			item := it.Item()
			if len(end) > 0 && bytes.Compare(item.Key(), end) >= 0 {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(KeyAndValue{}, err)
				return
			}
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				log.Debug("[badger].Iter:", "start", string(start), "end", string(end), "err", err)
				yield(KeyAndValue{}, err)
				return
			}
			if val == nil {
				val = []byte{}
			}
			log.Debug("[badger].Iter:", "start", string(start), "end", string(end), "at", string(key))
			if !yield(KeyAndValue{K: key, V: val}, nil) {
				return
			}
		}
	}
}

func (w *BadgerWrite) Close() {
	if !w.commited {
		w.Rollback()
	}
}

func (b *Badgerdb) Close() {
	b.db.Close()
}

func (b *Badgerdb) Ping() error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (b *Badgerdb) Write(ctx context.Context) (Write, error) {
	if b.db.IsClosed() {
		return nil, ErrClosed
	}
	return &BadgerWrite{txn: b.db.NewTransaction(true)}, nil
}

// NewBadger opens a badger database in dir. An empty dir runs badger in memory.
func NewBadger(dir string) (KV, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &Badgerdb{db: db}, nil
}

package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type Pebbledb struct {
	db *pebble.DB

	// pebble has no interactive transactions. an indexed batch under a
	// store wide lock gives read-your-writes and serializable scopes.
	globalWriteLock writeLock
	closed          atomic.Bool
}

type PebbleWrite struct {
	p        *Pebbledb
	batch    *pebble.Batch
	err      error
	commited bool
	locked   bool
}

func (w *PebbleWrite) unlock() {
	if w.locked {
		w.locked = false
		w.p.globalWriteLock.unlock()
	}
}

func (w *PebbleWrite) Commit(ctx context.Context) error {
	defer w.unlock()
	if w.err != nil {
		return w.err
	}
	if w.commited {
		return fmt.Errorf("already committed")
	}
	err := w.batch.Commit(pebble.Sync)
	if err != nil {
		w.err = err
		w.batch.Close()
		return err
	}
	w.commited = true
	return w.batch.Close()
}

func (w *PebbleWrite) Rollback() error {
	defer w.unlock()
	if w.commited {
		return fmt.Errorf("already committed")
	}
	if w.err != nil {
		return w.err
	}
	w.err = fmt.Errorf("rolled back")
	return w.batch.Close()
}

func (w *PebbleWrite) Put(key []byte, value []byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.batch.Set(key, value, pebble.Sync)
	if err != nil {
		w.Rollback()
		w.err = err
	}
	log.Debug("[pebble].Put:", "key", string(key), "err", err)
	return w.err
}

func (w *PebbleWrite) Get(ctx context.Context, key []byte) ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}

	val, closer, err := w.batch.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			log.Debug("[pebble].Get:", "key", string(key), "err", "not found")
			return nil, ErrNotFound
		}
		log.Debug("[pebble].Get:", "key", string(key), "err", err)
		return nil, err
	}
	defer closer.Close()

	// Copy the value since the closer will invalidate it
	result := make([]byte, len(val))
	copy(result, val)

	log.Debug("[pebble].Get:", "key", string(key))
	return result, nil
}

func (w *PebbleWrite) Del(key []byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.batch.Delete(key, pebble.Sync)
	if err != nil {
		w.Rollback()
		w.err = err
	}
	return w.err
}

func (w *PebbleWrite) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	if len(end) == 0 {
		end = nil
	}
	return func(yield func(KeyAndValue, error) bool) {
		if w.err != nil {
			yield(KeyAndValue{}, w.err)
			return
		}
		it, err := w.batch.NewIter(&pebble.IterOptions{
			LowerBound: start,
			UpperBound: end,
		})
		if err != nil {
			yield(KeyAndValue{}, err)
			return
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				yield(KeyAndValue{}, err)
				return
			}
			// Copy key and value since they may be invalidated by iterator movement
			key := append([]byte(nil), it.Key()...)
			val := append([]byte{}, it.Value()...)

			log.Debug("[pebble].Iter:", "start", string(start), "end", string(end), "at", string(key))
			if !yield(KeyAndValue{K: key, V: val}, nil) {
				return
			}
		}

		if err := it.Error(); err != nil {
			log.Debug("[pebble].Iter:", "start", string(start), "end", string(end), "err", err)
			yield(KeyAndValue{}, err)
		}
	}
}

func (w *PebbleWrite) Close() {
	if !w.commited {
		w.Rollback()
	}
}

func (p *Pebbledb) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.db.Close()
	}
}

func (p *Pebbledb) Ping() error {
	if p.closed.Load() {
		return ErrClosed
	}
	_, closer, err := p.db.Get([]byte{0})
	if err == nil {
		closer.Close()
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	return err
}

func (p *Pebbledb) Write(ctx context.Context) (Write, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if err := p.globalWriteLock.lock(ctx); err != nil {
		return nil, err
	}
	return &PebbleWrite{p: p, batch: p.db.NewIndexedBatch(), locked: true}, nil
}

// NewPebble opens a pebble database in dir. An empty dir keeps everything in memory.
func NewPebble(dir string) (KV, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}

	return &Pebbledb{db: db, globalWriteLock: newWriteLock()}, nil
}

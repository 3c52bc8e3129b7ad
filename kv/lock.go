package kv

import (
	"context"
)

// writeLock serializes write transactions. Unlike sync.Mutex, waiting for
// it can be abandoned through the context.
type writeLock chan struct{}

func newWriteLock() writeLock {
	return make(writeLock, 1)
}

func (l writeLock) lock(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l writeLock) unlock() {
	<-l
}

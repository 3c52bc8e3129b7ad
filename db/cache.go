package db

import (
	"bytes"
	"sync"

	"github.com/maypok86/otter"
)

// valueCache holds present values by key. A nil *valueCache is a disabled
// cache. Fills from reads are dropped if any write landed since the read
// started, so a slow reader cannot overwrite a newer value.
type valueCache struct {
	mu  sync.Mutex
	gen uint64
	c   otter.Cache[string, []byte]
}

func newValueCache(capacity int) (*valueCache, error) {
	c, err := otter.MustBuilder[string, []byte](capacity).Build()
	if err != nil {
		return nil, err
	}
	return &valueCache{c: c}, nil
}

func (vc *valueCache) get(key []byte) ([]byte, bool) {
	if vc == nil {
		return nil, false
	}
	v, ok := vc.c.Get(string(key))
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

func (vc *valueCache) generation() uint64 {
	if vc == nil {
		return 0
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.gen
}

func (vc *valueCache) fill(key, value []byte, gen uint64) {
	if vc == nil {
		return
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if vc.gen != gen {
		return
	}
	vc.c.Set(string(key), bytes.Clone(value))
}

// apply records the writes of a finished transaction. Writes of a failed
// commit are evicted since their outcome is unknown.
func (vc *valueCache) apply(writes []pendingWrite, failed bool) {
	if vc == nil || len(writes) == 0 {
		return
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.gen++
	for _, w := range writes {
		if failed || w.deleted {
			vc.c.Delete(string(w.key))
		} else {
			vc.c.Set(string(w.key), w.value)
		}
	}
}

func (vc *valueCache) close() {
	if vc == nil {
		return
	}
	vc.c.Close()
}

package kv

import (
	"fmt"
)

const (
	BackendMem    = "mem"
	BackendPebble = "pebble"
	BackendBadger = "badger"
	BackendTikv   = "tikv"
)

type Options struct {
	Backend    string
	Path       string
	PDEndpoint string
}

// Open connects to the backend named in opts.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case BackendMem, "":
		return NewMem(), nil
	case BackendPebble:
		return NewPebble(opts.Path)
	case BackendBadger:
		return NewBadger(opts.Path)
	case BackendTikv:
		return NewTikv(opts.PDEndpoint)
	default:
		return nil, fmt.Errorf("unknown kv backend %q", opts.Backend)
	}
}

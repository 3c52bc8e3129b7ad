package db

import (
	"context"
	"fmt"
)

// Event describes a committed mutation or an existence violation.
type Event struct {
	Partition string `json:"partition"`
	Op        string `json:"op"`
	Key       []byte `json:"key"`
	Existed   bool   `json:"existed"`
}

type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

func (h *Handle) publish(ctx context.Context, ev Event) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Publish(ctx, ev); err != nil {
		h.log.Warn("publishing event failed", "op", ev.Op, "key", fmt.Sprintf("%x", ev.Key), "err", err)
	}
}

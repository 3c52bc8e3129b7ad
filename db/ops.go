package db

import (
	"bytes"
	"context"
)

// Get returns the value stored under key. ok is false if the key is absent.
func (h *Handle) Get(ctx context.Context, key []byte) (value []byte, ok bool, err error) {
	if v, hit := h.cache.get(key); hit && !h.closed.Load() {
		return v, true, nil
	}
	gen := h.cache.generation()
	err = h.withTransaction(ctx, "get", func(ctx context.Context, s *scope) error {
		value, ok, err = s.get(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if ok {
		h.cache.fill(key, value, gen)
	}
	return value, ok, nil
}

// Insert stores value under key and returns the value it replaced.
func (h *Handle) Insert(ctx context.Context, key, value []byte) (prev []byte, existed bool, err error) {
	err = h.withTransaction(ctx, "insert", func(ctx context.Context, s *scope) error {
		prev, existed, err = s.insert(ctx, key, value)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return prev, existed, nil
}

// Remove deletes key and returns the value it held. Removing an absent
// key is not an error.
func (h *Handle) Remove(ctx context.Context, key []byte) (prev []byte, existed bool, err error) {
	err = h.withTransaction(ctx, "remove", func(ctx context.Context, s *scope) error {
		prev, existed, err = s.remove(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return prev, existed, nil
}

func (s *scope) insert(ctx context.Context, key, value []byte) ([]byte, bool, error) {
	prev, existed, err := s.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		value = []byte{}
	}
	if err := s.put(key, value); err != nil {
		return nil, false, err
	}
	s.emit(Event{Partition: s.h.name, Op: OpInsert, Key: bytes.Clone(key), Existed: existed})
	return prev, existed, nil
}

func (s *scope) remove(ctx context.Context, key []byte) ([]byte, bool, error) {
	prev, existed, err := s.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if err := s.del(key); err != nil {
		return nil, false, err
	}
	s.emit(Event{Partition: s.h.name, Op: OpRemove, Key: bytes.Clone(key), Existed: existed})
	return prev, existed, nil
}

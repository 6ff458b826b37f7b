// Package store persists bot state to a key/value backend.
package store

import (
	"context"
	"slices"
	"strings"
	"sync"
)

type stoerr string

func (e stoerr) Error() string { return string(e) }

var (
	ErrNotFound        = stoerr("key not found")
	ErrLockNotAcquired = stoerr("lock not acquired")
	ErrLockNotHeld     = stoerr("lock not held")
)

// KV is the minimal storage surface the bot needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// MemoryKV is an in-process KV used by tests and single-node runs.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, val []byte) error {
	m.mu.Lock()
	m.data[key] = slices.Clone(val)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Package kvstore defines the local persistent store used by the cache and
// provides the in-memory backend plus a size-bounding wrapper.
package kvstore

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrQuotaExceeded is returned by Write when a value is larger than the store allows.
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")
	// ErrCorrupt is returned by Read when a stored value fails its integrity check.
	ErrCorrupt = errors.New("kvstore: corrupt value")
)

// DefaultMaxValueBytes mirrors the per-origin budget of browser local storage.
const DefaultMaxValueBytes = 5 << 20

// Store is a synchronous, size-bounded key/value store.
type Store interface {
	// Read returns the value for key; ok is false when the key is absent.
	Read(key string) (value string, ok bool, err error)
	Write(key, value string) error
	Remove(key string) error
}

// Memory is a Store backed by a map. The zero value is not usable; use NewMemory.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Read(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *Memory) Write(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len reports the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

type quotaStore struct {
	Store
	max int
}

// WithQuota wraps store so that writes larger than maxBytes fail with
// ErrQuotaExceeded. A non-positive maxBytes returns store unchanged.
func WithQuota(store Store, maxBytes int) Store {
	if maxBytes <= 0 {
		return store
	}
	return &quotaStore{Store: store, max: maxBytes}
}

func (q *quotaStore) Write(key, value string) error {
	if len(value) > q.max {
		return fmt.Errorf("write %s: %d bytes over %d: %w", key, len(value), q.max, ErrQuotaExceeded)
	}
	return q.Store.Write(key, value)
}

package kv

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps values in a map. A positive Quota bounds the total size
// in bytes of all stored values.
type MemoryStore struct {
	Quota int

	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore with the given quota (0 = unbounded).
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{Quota: quota, data: make(map[string]string)}
}

// Get returns the value for key or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key, failing with ErrQuotaExceeded if the store
// would grow beyond its quota.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	if m.Quota > 0 {
		total := len(value)
		for k, v := range m.data {
			if k != key {
				total += len(v)
			}
		}
		if total > m.Quota {
			return fmt.Errorf("kv: set %s (%d bytes): %w", key, len(value), ErrQuotaExceeded)
		}
	}
	m.data[key] = value
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

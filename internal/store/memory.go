package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
	writes int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string]map[string]string)}
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, namespace, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[namespace][key]
	return v, ok, nil
}

// Set creates or replaces the value stored under key.
func (m *MemoryStore) Set(_ context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[namespace]; !ok {
		m.values[namespace] = make(map[string]string)
	}
	m.values[namespace][key] = value
	m.writes++
	return nil
}

// SetMany writes every entry of values under one lock. It counts as one write.
func (m *MemoryStore) SetMany(_ context.Context, namespace string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[namespace]; !ok {
		m.values[namespace] = make(map[string]string)
	}
	for k, v := range values {
		m.values[namespace][k] = v
	}
	m.writes++
	return nil
}

// NamespacesWithKey lists namespaces holding key, sorted.
func (m *MemoryStore) NamespacesWithKey(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for ns, kv := range m.values {
		if _, ok := kv[key]; ok {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Writes returns how many Set calls have succeeded.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

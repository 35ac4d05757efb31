// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
)

// Store is a namespaced string key/value store.
// Each browser identity (or CLI profile) owns one namespace.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, namespace, key string) (value string, ok bool, err error)

	// Set creates or replaces the value stored under key.
	Set(ctx context.Context, namespace, key, value string) error

	// SetMany writes several keys of one namespace atomically: either all
	// values are stored or none are.
	SetMany(ctx context.Context, namespace string, values map[string]string) error

	// NamespacesWithKey lists every namespace that holds a value for key.
	NamespacesWithKey(ctx context.Context, key string) ([]string, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing storage.
	Close() error
}

// KV is a single-namespace view of a Store.
type KV interface {
	Namespace() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
}

// CredentialKey is where a namespace keeps its model API key.
const CredentialKey = "credential"

// Scope returns the KV view of namespace inside s.
func Scope(s Store, namespace string) KV {
	return scoped{store: s, namespace: namespace}
}

type scoped struct {
	store     Store
	namespace string
}

func (s scoped) Namespace() string { return s.namespace }

func (s scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.namespace, key)
}

func (s scoped) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.namespace, key, value)
}

func (s scoped) SetMany(ctx context.Context, values map[string]string) error {
	return s.store.SetMany(ctx, s.namespace, values)
}

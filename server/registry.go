package server

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Registry errors.
var (
	ErrDuplicateName = errors.New("duplicate capability name")
	ErrNotFound      = errors.New("capability not found")
	ErrSealed        = errors.New("registry is sealed")
)

// Registry is an ordered name-to-entry map. Entries list in registration
// order. Register and Seal serialize on a mutex, so a Register racing a Seal
// either lands first or fails with ErrSealed. Lookups take no lock and are
// only safe once the registry is sealed.
type Registry[T any] struct {
	kind    string
	mu      sync.Mutex
	order   []string
	entries map[string]T
	sealed  atomic.Bool
}

// NewRegistry returns an empty registry. kind names the capability kind in
// error messages ("tool", "resource", "prompt").
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		entries: make(map[string]T),
	}
}

// Register adds entry under name.
func (r *Registry[T]) Register(name string, entry T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrSealed)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrDuplicateName)
	}
	r.entries[name] = entry
	r.order = append(r.order, name)
	return nil
}

// Get returns the entry registered under name.
func (r *Registry[T]) Get(name string) (T, error) {
	entry, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	return entry, nil
}

// List returns all entries in registration order.
func (r *Registry[T]) List() []T {
	out := make([]T, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Len returns the number of registered entries.
func (r *Registry[T]) Len() int {
	return len(r.order)
}

// Seal makes the registry read-only.
func (r *Registry[T]) Seal() {
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Sealed reports whether the registry has been sealed.
func (r *Registry[T]) Sealed() bool {
	return r.sealed.Load()
}

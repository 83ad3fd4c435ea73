package plugins

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps descriptor entry points to the factories compiled into the
// binary. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for entry
func (r *Registry) Register(entry string, factory Factory) error {
	if entry == "" {
		return fmt.Errorf("cannot register factory with empty entry")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for %s", entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[entry]; exists {
		return fmt.Errorf("%w: %s", ErrFactoryExists, entry)
	}

	r.factories[entry] = factory
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error
func (r *Registry) MustRegister(entry string, factory Factory) {
	if err := r.Register(entry, factory); err != nil {
		panic(err)
	}
}

// Unregister removes the factory for entry
func (r *Registry) Unregister(entry string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[entry]; !exists {
		return fmt.Errorf("%w: %s", ErrNoFactory, entry)
	}

	delete(r.factories, entry)
	return nil
}

// Lookup returns the factory for entry
func (r *Registry) Lookup(entry string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[entry]
	return f, ok
}

// Has checks if a factory is registered
func (r *Registry) Has(entry string) bool {
	_, ok := r.Lookup(entry)
	return ok
}

// List returns the registered entries in ascending order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.factories))
	for entry := range r.factories {
		result = append(result, entry)
	}
	sort.Strings(result)

	return result
}

// Count returns the number of registered factories
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.factories)
}

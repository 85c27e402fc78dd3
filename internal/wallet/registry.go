package wallet

import (
	"sort"
	"sync"
)

// Registry holds, per backend name, the instance that most recently connected.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]Wallet
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]Wallet)}
}

// Set publishes w as the connected instance of name, replacing any previous one.
func (r *Registry) Set(name string, w Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[name] = w
}

// Clear empties the slot of name if it still holds w.
func (r *Registry) Clear(name string, w Wallet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.slots[name]; ok && current == w {
		delete(r.slots, name)
		return true
	}
	return false
}

// Get returns the connected instance of name.
func (r *Registry) Get(name string) (Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.slots[name]
	return w, ok
}

// IsAvailable reports whether some instance of name is connected.
func (r *Registry) IsAvailable(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the names with a connected instance, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

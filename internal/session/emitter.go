package session

import "sync"

// Emitter is a concurrency-safe event listener set.
// The zero value is ready to use.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]*Listener
}

// On registers h for event and returns its handle.
func (e *Emitter) On(event string, h Handler) *Listener {
	l := &Listener{event: event, fn: h}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*Listener)
	}
	e.listeners[event] = append(e.listeners[event], l)
	return l
}

// Remove unregisters the listener. Unknown handles are ignored.
func (e *Emitter) Remove(event string, l *Listener) bool {
	if l == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.listeners[event]
	for i, existing := range list {
		if existing == l {
			e.listeners[event] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Emit calls every listener of event with payload, outside the lock.
func (e *Emitter) Emit(event string, payload any) {
	e.mu.RLock()
	list := make([]*Listener, len(e.listeners[event]))
	copy(list, e.listeners[event])
	e.mu.RUnlock()

	for _, l := range list {
		l.fn(payload)
	}
}

// Count returns the number of listeners registered for event.
func (e *Emitter) Count(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// Clear removes all listeners.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}

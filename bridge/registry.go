package bridge

import "sync"

// Registry tracks running sessions by identifier. It is plain
// bookkeeping: it never controls a session's lifecycle, sessions
// register and deregister themselves as they start and stop.
//
// A registry is constructed by the surrounding server and handed to
// each new session, so tests can instantiate isolated registries.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Bridge
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Bridge),
	}
}

// Register adds a session under id, replacing any previous entry.
func (registry *Registry) Register(id string, bridge *Bridge) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.sessions[id] = bridge
}

// Deregister removes the session registered under id, if any.
func (registry *Registry) Deregister(id string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.sessions, id)
}

// Lookup returns the session registered under id.
func (registry *Registry) Lookup(id string) (*Bridge, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	bridge, ok := registry.sessions[id]
	return bridge, ok
}

// IDs returns the identifiers of all registered sessions.
func (registry *Registry) IDs() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	ids := make([]string, 0, len(registry.sessions))
	for id := range registry.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered sessions.
func (registry *Registry) Count() int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.sessions)
}

package session

import (
	"encoding/json"
	"sync"
)

// Handler receives the payload of an inbound envelope. The handler
// registered for the protocol.Wildcard type instead receives the whole
// raw envelope frame.
type Handler func(payload json.RawMessage)

// Registry maps an event-type string to a single handler. Registering a
// type that already has a handler replaces it: last registration wins.
// UI surfaces that register on mount and unregister on unmount must
// therefore unregister in the opposite order when their lifetimes
// overlap, or dispatch goes to a stale surface.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty dispatch registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs handler for msgType, replacing any prior handler.
func (r *Registry) Register(msgType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = handler
}

// Unregister removes the handler for msgType. Removing an absent type
// is a no-op.
func (r *Registry) Unregister(msgType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, msgType)
}

// Clear drops every registered handler.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
}

func (r *Registry) get(msgType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[msgType]
}

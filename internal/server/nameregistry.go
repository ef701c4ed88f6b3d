package server

import "sync"

// NameRegistry implements the write-once client_name latch (spec §4.8):
// once a name has completed a handshake, no later Frontend — including one
// serving a reconnect attempt from the same client — may claim it again.
// Shared by reference across every Frontend a Server creates, since the
// latch outlives any single connection.
type NameRegistry struct {
	mu   sync.Mutex
	used map[string]bool
}

// NewNameRegistry constructs an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{used: make(map[string]bool)}
}

// Claim registers name, returning false if it was already claimed.
func (r *NameRegistry) Claim(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used[name] {
		return false
	}
	r.used[name] = true
	return true
}

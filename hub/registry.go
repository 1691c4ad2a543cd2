// File: hub/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread-safe set of open connections.

package hub

import (
	"sort"
	"sync"
)

// Registry holds the open, handshake-complete connections. A connection
// appears at most once. Writers are exclusive; ForEachExcept excludes
// writers for the duration of the iteration.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint64]*Conn
}

// ConnInfo is a point-in-time view of a registered connection.
type ConnInfo struct {
	ID     uint64 `json:"id"`
	Remote string `json:"remote"`
	State  string `json:"state"`
	Queued int    `json:"queued"`
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint64]*Conn)}
}

// Add inserts c. It returns false if c is already present.
func (r *Registry) Add(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.id]; ok {
		return false
	}
	r.conns[c.id] = c
	return true
}

// Remove deletes c. Removing an absent connection is a no-op that
// returns false.
func (r *Registry) Remove(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.id]; !ok {
		return false
	}
	delete(r.conns, c.id)
	return true
}

// ForEachExcept calls fn for every member other than sender. A nil sender
// visits every member. fn must not call back into the registry.
func (r *Registry) ForEachExcept(sender *Conn, fn func(*Conn)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c == sender {
			continue
		}
		fn(c)
	}
}

// Contains reports whether c is registered.
func (r *Registry) Contains(c *Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[c.id]
	return ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot lists the registered connections ordered by ID.
func (r *Registry) Snapshot() []ConnInfo {
	r.mu.RLock()
	out := make([]ConnInfo, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, ConnInfo{
			ID:     c.id,
			Remote: c.remote,
			State:  c.State().String(),
			Queued: c.out.size(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

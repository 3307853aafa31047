package monitor

import (
	"sync"

	"github.com/furrysalamander/ansicraft/internal/queue"
	"github.com/furrysalamander/ansicraft/internal/render"
)

// SessionInfo is the read-only view of a session the monitor exposes.
// Satisfied by *session.Runtime.
type SessionInfo interface {
	Identity() string
	Slot() (queue.SlotID, bool)
	MetricsSnapshot() render.Snapshot
	Running() bool
}

// Registry tracks active sessions for the status feed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionInfo]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionInfo]struct{})}
}

// Add registers a session.
func (r *Registry) Add(s SessionInfo) {
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
}

// Remove drops a session.
func (r *Registry) Remove(s SessionInfo) {
	r.mu.Lock()
	delete(r.sessions, s)
	r.mu.Unlock()
}

// List returns the registered sessions.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

package decision

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Registry holds the per-session timer singletons, injected where needed
// instead of living in package statics.
type Registry struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewRegistry(clock clockwork.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		clock:    clock,
		logger:   logger,
		managers: make(map[string]*Manager),
	}
}

func (r *Registry) ManagerFor(sessionId string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[sessionId]; ok {
		return m
	}

	m := NewManager(sessionId, r.clock, r.logger)
	r.managers[sessionId] = m

	return m
}

func (r *Registry) Release(sessionId string) {
	r.mu.Lock()
	m, ok := r.managers[sessionId]
	delete(r.managers, sessionId)
	r.mu.Unlock()

	if ok {
		m.Destroy()
	}
}

func (r *Registry) Shutdown() {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.managers = make(map[string]*Manager)
	r.mu.Unlock()

	for _, m := range managers {
		m.Destroy()
	}
}

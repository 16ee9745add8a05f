package app

import (
	"sync"

	"github.com/dkeye/Parley/internal/core"
)

// PresenceTracker broadcasts the online-user list after every registry
// mutation. Broadcasts are serialized, so the last one always carries the
// latest state.
type PresenceTracker struct {
	mu       sync.Mutex
	registry *Registry
	router   *Router
}

// NewPresenceTracker subscribes the tracker to reg.
func NewPresenceTracker(reg *Registry, router *Router) *PresenceTracker {
	p := &PresenceTracker{registry: reg, router: router}
	reg.Subscribe(p.Refresh)
	return p
}

func (p *PresenceTracker) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.router.BroadcastAll(core.PresenceChanged{UserIDs: p.registry.OnlineUserIDs()})
}

package server

import (
	"sync"

	"github.com/elonfeng/hyperadar/pkg/token"
	"github.com/elonfeng/hyperadar/pkg/view"
)

// Hub holds the latest snapshot and fans it out to open views.
type Hub struct {
	mu    sync.RWMutex
	snap  token.Snapshot
	has   bool
	views map[string]*view.View
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{views: make(map[string]*view.View)}
}

// Publish stores snap when it is newer than the held one and offers it to
// every open view.
func (h *Hub) Publish(snap token.Snapshot) {
	h.mu.Lock()
	if h.has && snap.Seq <= h.snap.Seq {
		h.mu.Unlock()
		return
	}
	h.snap = snap
	h.has = true
	views := make([]*view.View, 0, len(h.views))
	for _, v := range h.views {
		views = append(views, v)
	}
	h.mu.Unlock()

	for _, v := range views {
		v.SetSnapshot(snap)
	}
}

// Snapshot returns the latest snapshot, if any.
func (h *Hub) Snapshot() (token.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap, h.has
}

// Views returns the number of attached views.
func (h *Hub) Views() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.views)
}

// attach registers v and hands it the current snapshot.
func (h *Hub) attach(v *view.View) {
	h.mu.Lock()
	h.views[v.ID()] = v
	snap, has := h.snap, h.has
	h.mu.Unlock()

	if has {
		v.SetSnapshot(snap)
	}
}

func (h *Hub) detach(id string) {
	h.mu.Lock()
	delete(h.views, id)
	h.mu.Unlock()
}

// CloseAll closes every attached view.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	views := h.views
	h.views = make(map[string]*view.View)
	h.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

package sink

import (
	"context"
	"sync"
)

// Hub routes each event to the sinks subscribed to its project.
type Hub struct {
	mu     sync.RWMutex
	next   int
	routes map[string]map[int]Sink
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{routes: make(map[string]map[int]Sink)}
}

// Subscribe attaches s to project and returns the detach function.
func (h *Hub) Subscribe(project string, s Sink) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	if h.routes[project] == nil {
		h.routes[project] = make(map[int]Sink)
	}
	h.routes[project][id] = s

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.routes[project], id)
		if len(h.routes[project]) == 0 {
			delete(h.routes, project)
		}
	}
}

// Subscribers returns how many sinks listen on project.
func (h *Hub) Subscribers(project string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.routes[project])
}

func (h *Hub) Emit(ctx context.Context, ev Event) {
	h.mu.RLock()
	targets := make([]Sink, 0, len(h.routes[ev.Project]))
	for _, s := range h.routes[ev.Project] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Emit(ctx, ev)
	}
}

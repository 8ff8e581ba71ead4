// Package realtime fans dashboard updates out to the push listeners of one session.
//
// Delivery is best effort: each listener has its own buffered channel and an
// event that does not fit is dropped for that listener only. Every view event
// carries the full view, so a dropped frame is repaired by the next one.
package realtime

import "sync"

// Event types.
const (
	TypeInit     = "init"
	TypeView     = "view"
	TypeCounters = "counters"
	TypeClosed   = "closed"
)

// Event is one push message.
type Event struct {
	Type     string           `json:"type"`
	View     any              `json:"view,omitempty"`
	HTML     string           `json:"html,omitempty"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

// Hub is an in-memory fan-out dispatcher. It is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
	closed    bool
}

// NewHub creates a hub with the given per-listener buffer. bufSize <= 0 means 16.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. On a closed hub the returned channel is already closed.
// Callers must Unregister the id when done.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener, dropping it for listeners whose buffer is full.
// It returns the number of listeners that received it.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Close sends a best-effort closed event, then closes every listener channel.
// Later Register calls get a closed channel. Close is idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.listeners {
		select {
		case ch <- Event{Type: TypeClosed}:
		default:
		}
		close(ch)
		delete(h.listeners, id)
	}
}

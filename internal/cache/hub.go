// internal/cache/hub.go
package cache

import (
	"context"
	"sync"

	"github.com/Furiten/riichi-api/internal/models"
	"github.com/google/uuid"
)

// Hub fans round events out to in-process subscribers, one set per session.
// It backs the websocket feed.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[chan models.RoundEvent]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[uuid.UUID]map[chan models.RoundEvent]struct{}), buffer: buffer}
}

// Subscribe returns a channel receiving every event of sessionID and a
// cancel func that unregisters and closes it.
func (h *Hub) Subscribe(sessionID uuid.UUID) (<-chan models.RoundEvent, func()) {
	ch := make(chan models.RoundEvent, h.buffer)
	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan models.RoundEvent]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Subscribers counts the live subscriptions of sessionID.
func (h *Hub) Subscribers(sessionID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, ev models.RoundEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

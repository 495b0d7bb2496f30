package notifications

import (
	"context"
	"sync"
)

// Hub is the in-process Broadcaster. Slow subscribers miss messages rather
// than blocking the sender.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Notification]struct{}
	buf  int
}

func NewHub(buf int) *Hub {
	if buf <= 0 {
		buf = 16
	}
	return &Hub{subs: map[string]map[chan Notification]struct{}{}, buf: buf}
}

func (h *Hub) Broadcast(_ context.Context, n Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context, userID string) (<-chan Notification, func(), error) {
	ch := make(chan Notification, h.buf)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = map[chan Notification]struct{}{}
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

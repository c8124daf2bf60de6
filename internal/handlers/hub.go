package handlers

import (
	"log/slog"
	"sync"

	"chatsync/internal/chat"

	"github.com/google/uuid"
)

const subscriberBuffer = 64

// Hub fans render updates out to every connected front end.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan chat.Update
	log  *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]chan chat.Update),
		log:  log,
	}
}

// Subscribe registers a new subscriber and returns its id and update stream.
func (h *Hub) Subscribe() (string, <-chan chat.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan chat.Update, subscriberBuffer)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes id and closes its stream. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the update.
func (h *Hub) Publish(u chat.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- u:
		default:
			h.log.Warn("render subscriber is slow, dropping update", "subscriber", id, "kind", u.Kind)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

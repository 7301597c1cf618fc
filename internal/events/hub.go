// Package events fans registry notifications and worker events out to any
// number of subscribers (the WebSocket endpoint, the CLI, tests).
package events

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

type Kind string

// Registry-level notifications.
const (
	Added            Kind = "added"
	Removed          Kind = "removed"
	Updated          Kind = "updated"
	Reordered        Kind = "reordered"
	SelectionChanged Kind = "selection_changed"
	SaveFailed       Kind = "save_failed"
)

// Worker-level events forwarded per source. Frames go to the frame cache and
// reach clients through the frame and MJPEG stream endpoints.
const (
	Status     Kind = "status"
	Error      Kind = "error"
	FirstFrame Kind = "first_frame"
)

// Notification is what subscribers receive.
type Notification struct {
	Kind     Kind         `json:"kind"`
	SourceID string       `json:"source_id,omitempty"`
	State    domain.State `json:"state,omitempty"`
	Text     string       `json:"text,omitempty"`
	At       time.Time    `json:"at"`
}

// Hub broadcasts notifications. Publish never blocks: a subscriber whose
// buffer is full misses the notification.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Notification
	next   uint64
	closed bool
	log    logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subs: make(map[uint64]chan Notification),
		log:  log,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Notification, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *Hub) Publish(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.log.Debug("subscriber too slow, notification dropped",
				logger.Int("subscriber", int(id)),
				logger.String("kind", string(n.Kind)))
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every subscriber and closes their channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

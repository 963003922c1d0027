// internal/game/hub.go
package game

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultSubscriberBuffer is the per-connection queue length used by the transport.
const DefaultSubscriberBuffer = 64

type subscriber struct {
	playerID string
	ch       chan GameEvent
}

// Hub fans room events out to subscribed connections. Publishing never
// blocks: a subscriber whose queue is full misses the event and should
// resync with sync_game.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*subscriber]struct{}
	logger *logrus.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		rooms:  make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a connection for playerID in roomID. The returned
// cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(roomID, playerID string, buffer int) (<-chan GameEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	sub := &subscriber{playerID: playerID, ch: make(chan GameEvent, buffer)}

	h.mu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.rooms[roomID]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.rooms, roomID)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber of roomID, or only to ev.To when set.
func (h *Hub) Publish(roomID string, ev GameEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[roomID] {
		if ev.To != "" && sub.playerID != ev.To {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.WithFields(logrus.Fields{
				"room":   roomID,
				"player": sub.playerID,
				"event":  ev.Type,
			}).Warn("subscriber queue full, dropping event")
		}
	}
}

// Subscribers returns how many connections are subscribed to roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

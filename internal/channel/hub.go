package channel

import (
	"sync"

	"github.com/marmos91/syncbox/internal/logger"
	"github.com/marmos91/syncbox/internal/metrics"
)

// Broadcaster is the fanout interface the HTTP gateway uses to notify
// channel peers of mutations it performed. Request-originated broadcasts
// include the entire room; there is no sender to exclude.
type Broadcaster interface {
	BroadcastToStore(storeID, event string, payload any)
}

// Hub owns the room registry: the set of live connections per store.
// Join, leave and broadcast enumeration are serialized per hub; rooms are
// tenant-scoped so contention stays low.
//
// The hub's lifetime is the server's lifetime.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// RoomName renders the room identifier of a store, as used in logs.
func RoomName(storeID string) string {
	return "store:" + storeID
}

// join adds a connection to its store's room.
func (h *Hub) join(storeID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[storeID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[storeID] = room
	}
	room[c] = struct{}{}
	logger.Debug("connection joined room",
		"room", RoomName(storeID), "conn_id", c.id, "members", len(room))
}

// leave removes a connection from its room. The connection is gone before
// the next broadcast enumeration.
func (h *Hub) leave(storeID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[storeID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, storeID)
	}
}

// RoomSize returns the number of live connections in a store's room.
func (h *Hub) RoomSize(storeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[storeID])
}

// BroadcastToStore delivers an event to every connection in the store's
// room, the sender's included. This is the request-path fanout.
func (h *Hub) BroadcastToStore(storeID, event string, payload any) {
	h.broadcast(storeID, nil, event, payload)
}

// broadcastExcept delivers an event to every room member except the
// sender. This is the channel-path fanout.
func (h *Hub) broadcastExcept(storeID string, sender *Client, event string, payload any) {
	h.broadcast(storeID, sender, event, payload)
}

func (h *Hub) broadcast(storeID string, exclude *Client, event string, payload any) {
	frame := outboundFrame{Event: event, Data: payload}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[storeID]))
	for c := range h.rooms[storeID] {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
	if len(targets) > 0 {
		metrics.BroadcastsSent.WithLabelValues(event).Add(float64(len(targets)))
	}
}

// Package realtime pushes confirmed check-ins to staff dashboards over
// WebSocket, with Redis pub/sub bridging instances.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait (seconds) drive the heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher publishes event-feed messages for cross-instance broadcast.
type RedisPublisher interface {
	PublishEventFeed(eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to an event's feed channel.
type RedisSubscriber interface {
	SubscribeEventFeed(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains event_id -> set of staff connections and broadcasts
// check-in messages to them.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func() // cancel Redis subscription per event
	mu     sync.RWMutex
	logger *zap.Logger
	pub    RedisPublisher
	sub    RedisSubscriber
}

// NewHub creates a WebSocket hub. pub/sub may be nil for single-instance runs.
func NewHub(logger *zap.Logger, pub RedisPublisher, sub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to an event room, starting the Redis subscription
// when the first client joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeEventFeed(c.EventID, func(event string, payload []byte) {
				h.broadcastLocal(c.EventID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.EventID] = cancel
			} else {
				h.logger.Warn("event feed subscribe failed", zap.Error(err), zap.String("event_id", c.EventID.String()))
			}
		}
	}
	h.rooms[c.EventID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("staff client joined feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client, cancelling the Redis subscription when the
// last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.EventID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("staff client left feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// broadcastLocal sends a message to all clients in this instance's room.
func (h *Hub) broadcastLocal(eventID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow consumer; drop rather than block the feed
		}
	}
}

// BroadcastToEventAndPublish delivers a check-in to every instance's staff
// dashboards. With Redis wired, the message goes out via pub/sub only; this
// instance's own subscription performs the one local delivery, so clients
// never see the same check-in twice. Without Redis (or when the publish
// fails) it falls back to direct local delivery.
func (h *Hub) BroadcastToEventAndPublish(eventID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("feed payload marshal failed", zap.Error(err))
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishEventFeed(eventID, event, data); err == nil {
			return
		}
		h.logger.Warn("feed publish failed, delivering locally only", zap.Error(err), zap.String("event_id", eventID.String()))
	}
	h.broadcastLocal(eventID, event, json.RawMessage(data))
}

// RoomSize returns the number of connected clients for an event.
func (h *Hub) RoomSize(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

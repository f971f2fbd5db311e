package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// memBridge stands in for the Redis pub/sub layer: a publish is echoed back
// synchronously to every subscriber on the same instance, exactly as the
// real subscription loop would deliver it.
type memBridge struct {
	mu        sync.Mutex
	handlers  map[uuid.UUID][]func(event string, payload []byte)
	published int
	failNext  bool
}

func newMemBridge() *memBridge {
	return &memBridge{handlers: make(map[uuid.UUID][]func(event string, payload []byte))}
}

func (b *memBridge) PublishEventFeed(eventID uuid.UUID, event string, payload []byte) error {
	b.mu.Lock()
	if b.failNext {
		b.failNext = false
		b.mu.Unlock()
		return errors.New("redis unavailable")
	}
	b.published++
	hs := append([]func(string, []byte){}, b.handlers[eventID]...)
	b.mu.Unlock()
	for _, h := range hs {
		h(event, payload)
	}
	return nil
}

func (b *memBridge) SubscribeEventFeed(eventID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventID] = append(b.handlers[eventID], handler)
	return func() {}, nil
}

var (
	_ RedisPublisher  = (*memBridge)(nil)
	_ RedisSubscriber = (*memBridge)(nil)
)

func newFeedClient(eventID uuid.UUID) *Client {
	return &Client{
		ID:      uuid.New().String(),
		EventID: eventID,
		send:    make(chan WSMessage, 8),
	}
}

func TestBroadcast_DeliversExactlyOnceThroughRedis(t *testing.T) {
	bridge := newMemBridge()
	hub := NewHub(nil, bridge, bridge)
	eventID := uuid.New()
	client := newFeedClient(eventID)
	hub.Register(client)

	hub.BroadcastToEventAndPublish(eventID, "check_in", map[string]string{"attendee_name": "Rosa Marchetti"})

	if got := len(client.send); got != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", got)
	}
	msg := <-client.send
	if msg.Event != "check_in" {
		t.Errorf("event = %q, want check_in", msg.Event)
	}
	var body map[string]string
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if body["attendee_name"] != "Rosa Marchetti" {
		t.Errorf("data = %s", msg.Data)
	}
	if bridge.published != 1 {
		t.Errorf("published = %d, want 1", bridge.published)
	}
}

func TestBroadcast_LocalDeliveryWithoutRedis(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	client := newFeedClient(eventID)
	hub.Register(client)

	hub.BroadcastToEventAndPublish(eventID, "check_in", map[string]string{"attendee_name": "Theo Okafor"})

	if got := len(client.send); got != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", got)
	}
}

func TestBroadcast_FallsBackLocallyWhenPublishFails(t *testing.T) {
	bridge := newMemBridge()
	hub := NewHub(nil, bridge, bridge)
	eventID := uuid.New()
	client := newFeedClient(eventID)
	hub.Register(client)

	bridge.failNext = true
	hub.BroadcastToEventAndPublish(eventID, "check_in", map[string]string{"attendee_name": "Priya Nair"})

	if got := len(client.send); got != 1 {
		t.Fatalf("deliveries = %d, want exactly 1 via local fallback", got)
	}
}

func TestBroadcast_OnlyReachesTheEventRoom(t *testing.T) {
	bridge := newMemBridge()
	hub := NewHub(nil, bridge, bridge)
	eventA, eventB := uuid.New(), uuid.New()
	clientA := newFeedClient(eventA)
	clientB := newFeedClient(eventB)
	hub.Register(clientA)
	hub.Register(clientB)

	hub.BroadcastToEventAndPublish(eventA, "check_in", map[string]string{"attendee_name": "Hana Suzuki"})

	if len(clientA.send) != 1 {
		t.Errorf("room A deliveries = %d, want 1", len(clientA.send))
	}
	if len(clientB.send) != 0 {
		t.Errorf("room B deliveries = %d, want 0", len(clientB.send))
	}
}

package stream

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ClientCounter is the metrics hook for connected stream clients.
// Nil-safe via the no-op default in NewHub.
type ClientCounter interface {
	StreamClientsAdd(delta float64)
	BroadcastInc()
}

type noopCounter struct{}

func (noopCounter) StreamClientsAdd(float64) {}
func (noopCounter) BroadcastInc()            {}

// Hub fans live trip frames out to websocket clients, keyed by vehicle.
// With Redis configured, frames also cross node boundaries via pub/sub.
type Hub struct {
	redis   *redis.Client
	metrics ClientCounter
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	VehicleID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client, metrics ClientCounter) *Hub {
	if metrics == nil {
		metrics = noopCounter{}
	}
	h := &Hub{
		redis:   redisClient,
		metrics: metrics,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(vehicleID string) *Client {
	client := &Client{
		VehicleID: vehicleID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[vehicleID] == nil {
		h.clients[vehicleID] = map[*Client]struct{}{}
	}
	h.clients[vehicleID][client] = struct{}{}
	h.metrics.StreamClientsAdd(1)
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if vehicleClients, ok := h.clients[client.VehicleID]; ok {
		if _, registered := vehicleClients[client]; registered {
			delete(vehicleClients, client)
			h.metrics.StreamClientsAdd(-1)
			close(client.Send)
		}
		if len(vehicleClients) == 0 {
			delete(h.clients, client.VehicleID)
		}
	}
}

// Broadcast delivers a frame to every local client of the vehicle; slow
// clients are skipped rather than blocking the feed.
func (h *Hub) Broadcast(vehicleID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[vehicleID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
	h.metrics.BroadcastInc()

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(vehicleID), payload).Err()
		if err != nil {
			log.Printf("stream: redis publish error: %v", err)
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "live:*:frames")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		vehicleID := vehicleIDFromChannel(msg.Channel)
		h.mu.RLock()
		clients := h.clients[vehicleID]
		h.mu.RUnlock()
		for client := range clients {
			select {
			case client.Send <- []byte(msg.Payload):
			default:
			}
		}
	}
}

func redisChannel(vehicleID string) string {
	return "live:" + vehicleID + ":frames"
}

func vehicleIDFromChannel(ch string) string {
	// live:{vehicle}:frames
	const prefix = "live:"
	const suffix = ":frames"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}

// Package gateway exposes the live dashboard surface: a WebSocket
// stream of every evaluation result (HOLD placeholders included, so
// staleness is observable) and an HTTP view of the latest signal per
// (instrument, timeframe) key.
package gateway

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-systemv1/internal/model"
)

// envelope is the wire shape pushed to dashboard clients.
type envelope struct {
	Event string       `json:"event"`
	Data  model.Signal `json:"data"`
	TS    time.Time    `json:"ts"`
}

// client is one connected dashboard WebSocket.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected dashboard clients and the latest signal per
// key. A slow client drops frames rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  map[model.Key]model.Signal

	// OnDrop is an optional metrics hook for frames dropped on slow
	// clients.
	OnDrop func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		latest:  make(map[model.Key]model.Signal),
	}
}

// Publish records the signal as the latest for its key and broadcasts
// it to every connected client.
func (h *Hub) Publish(sig model.Signal) {
	env := envelope{Event: "new_signal", Data: sig, TS: time.Now().UTC()}
	buf, err := json.Marshal(env)
	if err != nil {
		log.Printf("[gateway] marshal signal: %v", err)
		return
	}

	h.mu.Lock()
	h.latest[sig.Key()] = sig
	for c := range h.clients {
		select {
		case c.send <- buf:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
	h.mu.Unlock()
}

// Latest returns the latest signal per key, ordered by asset then
// timeframe for stable dashboard rendering.
func (h *Hub) Latest() []model.Signal {
	h.mu.RLock()
	out := make([]model.Signal, 0, len(h.latest))
	for _, s := range h.latest {
		out = append(out, s)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset < out[j].Asset
		}
		return out[i].TF < out[j].TF
	})
	return out
}

// ClientCount returns the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

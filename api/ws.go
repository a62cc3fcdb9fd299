package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gantry-data/traffic.replay/internal/monitoring"
	"github.com/gantry-data/traffic.replay/internal/replay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the same origin; cross-origin browsers
	// are allowed so a dev UI on another port can connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub broadcasts playback status to connected dashboard clients. Slow
// clients are dropped rather than allowed to stall the tick loop: each
// client has a small buffered send queue and is disconnected when it fills.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan replay.PlaybackStatus
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// handleWS upgrades the connection and registers the client.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[ws] upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan replay.PlaybackStatus, 8)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	monitoring.Logf("[ws] client connected (%d active)", n)

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Broadcast queues a status update for every client. Non-blocking: a full
// queue drops the client.
func (h *Hub) Broadcast(status replay.PlaybackStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- status:
		default:
			delete(h.clients, c)
			close(c.send)
			monitoring.Logf("[ws] dropping slow client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for status := range c.send {
		if err := c.conn.WriteJSON(status); err != nil {
			h.remove(c)
			return
		}
	}
}

// readLoop discards inbound messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			c.conn.Close()
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	monitoring.Logf("[ws] client disconnected (%d active)", n)
}

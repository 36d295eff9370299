// Package events fans out sensor lifecycle and reading events to
// WebSocket subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed over the stream.
const (
	TypeReadingGenerated = "reading_generated"
	TypeStateChanged     = "state_changed"
	TypeSyncResult       = "sync_result"
)

const writeDeadline = 200 * time.Millisecond

// Event is one JSON frame on the stream.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// client pairs a connection with its write lock. gorilla/websocket
// allows only one concurrent writer per connection, and broadcasts
// arrive from the generation tick, the sync loop and HTTP handlers at
// once.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteJSON(ev)
}

// Hub tracks connected WebSocket clients and broadcasts events to all
// of them. Clients that fail a write are dropped.
type Hub struct {
	log     *slog.Logger
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*websocket.Conn]*client),
	}
}

// Add registers a client connection.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = &client{conn: conn}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client added", "clients", n)
}

// Remove unregisters and closes a client connection.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client removed", "clients", n)
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast delivers ev to every connected client. Writes to one
// connection are serialized through its client lock; a short write
// deadline keeps one slow client from stalling the emitting tick, and
// clients that miss it are evicted.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	var dead []*websocket.Conn
	for _, c := range targets {
		if err := c.write(ev); err != nil {
			dead = append(dead, c.conn)
		}
	}

	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range dead {
		if _, ok := h.clients[conn]; ok {
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
	h.mu.Unlock()
	h.log.Warn("ws clients evicted after failed write", "count", len(dead))
}

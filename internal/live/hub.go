// Package live streams challenge generation progress over WebSockets.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Hub tracks open sockets per user so that every tab a user has open sees
// the same generation progress.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	active map[string]map[uint64]*websocket.Conn
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]map[uint64]*websocket.Conn)}
}

// Register adds conn for userID and returns its handle for Unregister.
func (h *Hub) Register(userID string, conn *websocket.Conn) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if _, ok := h.active[userID]; !ok {
		h.active[userID] = make(map[uint64]*websocket.Conn)
	}
	h.active[userID][id] = conn
	slog.Debug("Live socket registered", "user_id", userID, "conn_id", id)
	return id
}

// Unregister removes a socket registered with Register.
func (h *Hub) Unregister(userID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.active[userID]
	if !ok {
		return
	}
	delete(conns, id)
	if len(conns) == 0 {
		delete(h.active, userID)
	}
	slog.Debug("Live socket unregistered", "user_id", userID, "conn_id", id)
}

// Count returns how many sockets userID has open.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[userID])
}

// Broadcast writes v as JSON to every socket of userID. Write failures are
// logged; the owning handler notices the dead socket on its next read.
func (h *Hub) Broadcast(userID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode live message", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.active[userID]))
	for _, c := range h.active[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := write(c, data); err != nil {
			slog.Debug("Live broadcast write failed", "user_id", userID, "error", err)
		}
	}
}

// CloseAll closes every open socket, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.active {
		for _, c := range conns {
			_ = c.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.active, userID)
	}
}

func write(c *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}

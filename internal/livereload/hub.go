// Package livereload tells connected browsers to reload when source files
// change.
package livereload

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageReload asks the client to reload the page.
const MessageReload = "reload"

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub fans messages out to every connected websocket client.
type Hub struct {
	mu       sync.RWMutex
	clients  map[chan []byte]struct{}
	upgrader websocket.Upgrader
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client and returns how many accepted it.
// A client whose queue is full is skipped.
func (h *Hub) Broadcast(msg string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for ch := range h.clients {
		select {
		case ch <- []byte(msg):
			n++
		default:
			// Client too slow, skip
		}
	}
	return n
}

// ServeHTTP upgrades the request to a websocket and streams messages until
// the client goes away or the server shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error.
		slog.DebugContext(ctx, "Live reload upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch := make(chan []byte, 8)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	// The client never sends anything; reading detects when it goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case <-gone:
			return
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

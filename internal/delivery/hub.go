package delivery

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/timecapsule/timecapsule/internal/logging"
)

// Hub is a delivery channel that streams payloads to connected WebSocket
// clients. Clients connect read-only; anything they send is discarded.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	conns map[*websocket.Conn]bool
	mu    sync.Mutex

	log *logging.Logger
}

// NewHub creates a websocket delivery hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local daemon, same-origin enforcement is left to the proxy
			},
		},
		writeTimeout: 10 * time.Second,
		conns:        make(map[*websocket.Conn]bool),
		log:          logging.Component("delivery.ws"),
	}
}

// Name identifies the channel
func (h *Hub) Name() string { return "websocket" }

// ServeHTTP upgrades the connection and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	h.log.Info("client connected (%d total)", h.ClientCount())

	// Drain incoming frames until the client goes away
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Deliver broadcasts the payload to every connected client. A dead client is
// dropped; its failure does not affect the rest.
func (h *Hub) Deliver(ctx context.Context, p Payload) error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		deadline := time.Now().Add(h.writeTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		conn.SetWriteDeadline(deadline)

		if err := conn.WriteJSON(p); err != nil {
			h.log.Warn("write to client failed, dropping: %v", err)
			h.drop(conn)
		}
	}

	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects all clients
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*websocket.Conn]bool)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

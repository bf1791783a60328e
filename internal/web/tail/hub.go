package tail

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeTimeout = 2 * time.Second

// Message types sent to clients.
const (
	MessageInit  = "init"
	MessageLines = "lines"
	MessageReset = "reset"
)

// Message is the JSON frame sent to websocket clients.
type Message struct {
	Type  string   `json:"type"`
	Lines []string `json:"lines,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// Hub manages websocket clients following the log.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a Hub. Cross-origin upgrades are rejected.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:  logger.With().Str("component", "hub").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Serve upgrades the request and streams log messages to the client until
// it disconnects. initial is sent first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial []string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.register(c)
	defer h.unregister(c)

	if err := c.write(Message{Type: MessageInit, Lines: initial}); err != nil {
		h.logger.Debug().Err(err).Msg("websocket init failed")
		return
	}

	// Clients send nothing; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends msg to every client, dropping those that fail.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			h.logger.Debug().Err(err).Msg("dropping websocket client")
			h.unregister(c)
		}
	}
}

// BroadcastLines is a Follower OnLines callback.
func (h *Hub) BroadcastLines(lines []string) {
	h.Broadcast(Message{Type: MessageLines, Lines: lines})
}

// BroadcastReset is a Follower OnReset callback.
func (h *Hub) BroadcastReset() {
	h.Broadcast(Message{Type: MessageReset})
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close()
	}
}

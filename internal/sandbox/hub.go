package sandbox

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
)

// Connection is one authenticated websocket client.
type Connection struct {
	Username string
	conn     *websocket.Conn
	send     chan []byte
}

func newConnection(username string, conn *websocket.Conn) *Connection {
	return &Connection{Username: username, conn: conn, send: make(chan []byte, sendBuffer)}
}

// writePump drains the send queue onto the socket. Runs until the
// channel closes or a write fails.
func (c *Connection) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// Hub fans server pushes out to connected clients, keyed by username.
// One user may hold several connections (tabs, devices).
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*Connection]bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*Connection]bool)}
}

func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	if h.conns[c.Username] == nil {
		h.conns[c.Username] = make(map[*Connection]bool)
	}
	h.conns[c.Username][c] = true
	h.mu.Unlock()

	go c.writePump()
	log.Debug().Str("username", c.Username).Msg("ws client connected")
}

func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	if set, ok := h.conns[c.Username]; ok {
		if set[c] {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.conns, c.Username)
		}
	}
	h.mu.Unlock()
	log.Debug().Str("username", c.Username).Msg("ws client disconnected")
}

// SendToUser pushes a frame to every connection the user holds. Slow
// consumers get dropped frames, not a blocked hub.
func (h *Hub) SendToUser(username string, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("ws frame marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[username] {
		select {
		case c.send <- payload:
		default:
			log.Warn().Str("username", username).Msg("ws send buffer full, frame dropped")
		}
	}
}

// Broadcast pushes a frame to every connected client.
func (h *Hub) Broadcast(frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("ws frame marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.conns {
		for c := range set {
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

// ConnectionCount reports live connections, for tests and logs.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, set := range h.conns {
		total += len(set)
	}
	return total
}

// Package gateway maintains the persistent WebSocket channel to the
// backend: auth handshake, topic-based dispatch, auto-reconnect. A
// Gateway is an explicitly constructed instance injected where needed;
// its lifecycle belongs to application startup and teardown.
package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// State of the gateway connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateOpen
	StateReconnectWait
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateOpen:
		return "open"
	case StateReconnectWait:
		return "reconnect_wait"
	default:
		return "unknown"
	}
}

// Inbound frame types.
const (
	TypeBalanceUpdate      = "balance_update"
	TypeTransaction        = "transaction"
	TypeWithdrawalApproved = "withdrawal_approved"
	TypeWithdrawalRejected = "withdrawal_rejected"
	TypeUsersUpdate        = "users_update"
)

const defaultReconnectDelay = 3 * time.Second

// Handler receives the full raw frame for its subscribed type.
type Handler func(frame json.RawMessage)

type subscriber struct {
	id int
	fn Handler
}

// AuthFrame is the first outbound frame on every connection.
type AuthFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Config configures a Gateway.
type Config struct {
	URL string
	// ReconnectDelay is the fixed wait before re-dialing after an
	// unexpected close. No backoff growth and no attempt cap:
	// reconnecting continues at this cadence while a token is set.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// Gateway is a single persistent connection with topic dispatch.
type Gateway struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	token          string
	state          State
	reconnectTimer *time.Timer
	handlers       map[string][]subscriber
	nextID         int

	writeMu sync.Mutex
}

// New creates a disconnected gateway.
func New(cfg Config) *Gateway {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	return &Gateway{
		url:            cfg.URL,
		reconnectDelay: delay,
		dialer:         &websocket.Dialer{HandshakeTimeout: handshake},
		handlers:       make(map[string][]subscriber),
	}
}

// State returns the current connection state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Connect stores the token and dials in the background. While the
// token stays set, every unexpected close schedules a reconnect.
func (g *Gateway) Connect(token string) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
	go g.dial()
}

// Disconnect clears the token, preventing auto-reconnect, and closes
// the socket immediately.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	g.token = ""
	if g.reconnectTimer != nil {
		g.reconnectTimer.Stop()
		g.reconnectTimer = nil
	}
	conn := g.conn
	g.conn = nil
	g.state = StateDisconnected
	g.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Subscribe registers a handler for a frame type and returns its
// unsubscribe function. Handlers run synchronously in subscription
// order on each matching frame.
func (g *Gateway) Subscribe(frameType string, fn Handler) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.handlers[frameType] = append(g.handlers[frameType], subscriber{id: id, fn: fn})
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		subs := g.handlers[frameType]
		for i := range subs {
			if subs[i].id == id {
				g.handlers[frameType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Send writes a JSON message. Messages are silently dropped, not
// queued, when the socket is not open; callers must not assume
// delivery.
func (g *Gateway) Send(v any) error {
	g.mu.Lock()
	conn := g.conn
	open := g.state == StateOpen
	g.mu.Unlock()

	if !open || conn == nil {
		log.Debug().Msg("gateway send dropped, socket not open")
		return nil
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (g *Gateway) dial() {
	g.mu.Lock()
	token := g.token
	if token == "" {
		g.mu.Unlock()
		return
	}
	g.state = StateConnecting
	g.mu.Unlock()

	conn, _, err := g.dialer.Dial(g.url, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", g.url).Msg("gateway dial failed")
		g.scheduleReconnect()
		return
	}

	g.mu.Lock()
	if g.token == "" {
		// Disconnected while dialing.
		g.mu.Unlock()
		_ = conn.Close()
		return
	}
	g.conn = conn
	g.state = StateAuthenticating
	g.mu.Unlock()

	// Auth goes out as the first frame; the socket is treated as open
	// right after, so handlers must tolerate frames arriving before
	// the server acknowledges auth.
	g.writeMu.Lock()
	err = conn.WriteJSON(AuthFrame{Type: "auth", Token: token})
	g.writeMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("gateway auth handshake failed")
		_ = conn.Close()
		g.scheduleReconnect()
		return
	}

	g.mu.Lock()
	g.state = StateOpen
	g.mu.Unlock()
	log.Info().Str("url", g.url).Msg("gateway connected")

	go g.readLoop(conn)
}

func (g *Gateway) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			g.mu.Lock()
			stale := g.conn != conn
			if !stale {
				g.conn = nil
			}
			g.mu.Unlock()
			if stale {
				// Explicit disconnect or replaced connection.
				return
			}
			log.Warn().Err(err).Msg("gateway connection lost")
			g.scheduleReconnect()
			return
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil || head.Type == "" {
			// Malformed frames are dropped, never crash the gateway.
			continue
		}
		g.dispatch(head.Type, data)
	}
}

func (g *Gateway) dispatch(frameType string, data []byte) {
	g.mu.Lock()
	subs := make([]subscriber, len(g.handlers[frameType]))
	copy(subs, g.handlers[frameType])
	g.mu.Unlock()

	for _, sub := range subs {
		sub.fn(data)
	}
}

// scheduleReconnect arms exactly one re-dial per close. A cleared
// token means the disconnect was explicit and nothing is scheduled.
func (g *Gateway) scheduleReconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token == "" {
		g.state = StateDisconnected
		return
	}
	if g.reconnectTimer != nil {
		return
	}
	g.state = StateReconnectWait
	log.Info().Dur("delay", g.reconnectDelay).Msg("gateway reconnect scheduled")
	g.reconnectTimer = time.AfterFunc(g.reconnectDelay, func() {
		g.mu.Lock()
		g.reconnectTimer = nil
		g.mu.Unlock()
		g.dial()
	})
}

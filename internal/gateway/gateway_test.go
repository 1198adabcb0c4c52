package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// wsServer upgrades connections, verifies the auth frame and hands the
// connection to fn.
func wsServer(t *testing.T, dials *int32, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(dials, 1)

		var auth AuthFrame
		if err := conn.ReadJSON(&auth); err != nil {
			t.Errorf("read auth frame: %v", err)
			return
		}
		if auth.Type != "auth" || auth.Token != "tok" {
			t.Errorf("unexpected auth frame: %+v", auth)
		}
		if fn != nil {
			fn(conn)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// holdOpen blocks until the peer closes the connection so handlers
// return and the test server can shut down.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAuthHandshakeAndDispatchOrder(t *testing.T) {
	var dials int32
	frames := make(chan string, 1)
	server := wsServer(t, &dials, func(conn *websocket.Conn) {
		<-frames
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"balance_update","balance":42.5}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transaction","id":"t1"}`))
		holdOpen(conn)
	})

	g := New(Config{URL: wsURL(server), ReconnectDelay: 50 * time.Millisecond})

	var mu sync.Mutex
	var got []string
	g.Subscribe(TypeBalanceUpdate, func(frame json.RawMessage) {
		var f struct {
			Balance float64 `json:"balance"`
		}
		_ = json.Unmarshal(frame, &f)
		mu.Lock()
		got = append(got, "first")
		mu.Unlock()
		if f.Balance != 42.5 {
			t.Errorf("expected balance 42.5, got %v", f.Balance)
		}
	})
	g.Subscribe(TypeBalanceUpdate, func(frame json.RawMessage) {
		mu.Lock()
		got = append(got, "second")
		mu.Unlock()
	})
	g.Subscribe(TypeTransaction, func(frame json.RawMessage) {
		mu.Lock()
		got = append(got, "tx")
		mu.Unlock()
	})

	g.Connect("tok")
	defer g.Disconnect()

	waitFor(t, time.Second, func() bool { return g.State() == StateOpen }, "gateway never opened")
	frames <- "go"

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, "handlers not invoked")

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "first" || got[1] != "second" || got[2] != "tx" {
		t.Fatalf("dispatch order violated: %v", got)
	}
}

func TestMalformedFramesDroppedSilently(t *testing.T) {
	var dials int32
	server := wsServer(t, &dials, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"no_type":true}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"users_update"}`))
		holdOpen(conn)
	})

	g := New(Config{URL: wsURL(server), ReconnectDelay: 50 * time.Millisecond})
	var hits int32
	g.Subscribe(TypeUsersUpdate, func(json.RawMessage) { atomic.AddInt32(&hits, 1) })

	g.Connect("tok")
	defer g.Disconnect()

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&hits) == 1 }, "valid frame after garbage not dispatched")
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	var dials int32
	server := wsServer(t, &dials, func(conn *websocket.Conn) {
		if atomic.LoadInt32(&dials) == 1 {
			_ = conn.Close() // simulate server-side drop
			return
		}
		holdOpen(conn)
	})

	g := New(Config{URL: wsURL(server), ReconnectDelay: 40 * time.Millisecond})
	g.Connect("tok")
	defer g.Disconnect()

	waitFor(t, time.Second, func() bool { return g.State() == StateReconnectWait || atomic.LoadInt32(&dials) >= 2 }, "reconnect never scheduled")

	// Exactly one reconnect is armed: no second dial before the delay.
	time.Sleep(10 * time.Millisecond)
	if n := atomic.LoadInt32(&dials); n != 1 {
		t.Fatalf("reconnect fired early, dials=%d", n)
	}

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&dials) == 2 }, "no reconnect after delay")
	waitFor(t, time.Second, func() bool { return g.State() == StateOpen }, "gateway did not reopen")
}

func TestDisconnectPreventsReconnect(t *testing.T) {
	var dials int32
	server := wsServer(t, &dials, func(conn *websocket.Conn) { holdOpen(conn) })

	g := New(Config{URL: wsURL(server), ReconnectDelay: 30 * time.Millisecond})
	g.Connect("tok")
	waitFor(t, time.Second, func() bool { return g.State() == StateOpen }, "gateway never opened")

	g.Disconnect()
	if g.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %v", g.State())
	}

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&dials); n != 1 {
		t.Fatalf("explicit disconnect must not reconnect, dials=%d", n)
	}
}

func TestSendDroppedWhenNotOpen(t *testing.T) {
	g := New(Config{URL: "ws://127.0.0.1:0/ws"})
	if err := g.Send(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("send on closed gateway must be a silent no-op, got %v", err)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	g := New(Config{URL: "ws://unused"})
	var hits int32
	unsub := g.Subscribe(TypeTransaction, func(json.RawMessage) { atomic.AddInt32(&hits, 1) })

	g.dispatch(TypeTransaction, []byte(`{"type":"transaction"}`))
	unsub()
	g.dispatch(TypeTransaction, []byte(`{"type":"transaction"}`))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", hits)
	}
}

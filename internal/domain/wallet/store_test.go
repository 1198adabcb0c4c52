package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/gateway"
)

func newStoreWithHandler(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := api.NewClient(server.URL, api.StaticToken("tok"), time.Second, "")
	return NewStore(client)
}

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		raw  string
		want TransactionType
	}{
		{"deposit", TypeDeposit},
		{"credit", TypeDeposit},
		{"topup", TypeDeposit},
		{"withdraw", TypeWithdraw},
		{"debit", TypeWithdraw},
		{"transfer_out", TypeWithdraw},
		{"bonus_spin", TypeOther},
		{"", TypeOther},
	}
	for _, tc := range cases {
		if got := NormalizeType(tc.raw); got != tc.want {
			t.Errorf("NormalizeType(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

// Ordering is defined by Apply calls, not by when the underlying
// request was initiated: the last write through the store's public
// apply path wins.
func TestLastApplyWins(t *testing.T) {
	s := NewStore(nil)

	// Push arrives first (newer server-side event)...
	s.Apply(120)
	// ...then a REST response issued earlier completes and is applied.
	s.Apply(100)

	if got := s.Balance(); got != 100 {
		t.Fatalf("expected last applied value 100, got %v", got)
	}

	s.Apply(120)
	if got := s.Balance(); got != 120 {
		t.Fatalf("expected 120 after later apply, got %v", got)
	}
}

func TestRefreshFailureKeepsStaleValue(t *testing.T) {
	var fail atomic.Bool
	s := newStoreWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusNotFound) // non-retryable
			_, _ = w.Write([]byte(`{"error":"user_not_found","message":"gone"}`))
			return
		}
		_, _ = w.Write([]byte(`{"balance": 50, "username": "alice"}`))
	})

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if snap := s.Snapshot(); snap.Balance != 50 || snap.Username != "alice" || !snap.Loaded {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	fail.Store(true)
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	snap := s.Snapshot()
	if snap.Balance != 50 {
		t.Fatalf("failed refresh must keep stale balance, got %v", snap.Balance)
	}
	if snap.Err == nil || snap.Loading {
		t.Fatalf("expected error flag without loading, got %+v", snap)
	}
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	var calls int32
	s := newStoreWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte(`{"balance": 10, "username": "alice"}`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one underlying fetch, got %d", n)
	}
	if s.Balance() != 10 {
		t.Fatalf("expected balance 10, got %v", s.Balance())
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := NewStore(nil)

	var mu sync.Mutex
	var seen []float64
	unsub := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap.Balance)
		mu.Unlock()
	})

	s.Apply(25)
	unsub()
	s.Apply(75)

	mu.Lock()
	defer mu.Unlock()
	// Immediate call with current state, then one update.
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 25 {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}

func TestCloseDiscardsLateApply(t *testing.T) {
	s := NewStore(nil)
	s.Apply(40)
	s.Close()
	s.Apply(99)
	s.SetError(nil)

	if got := s.Balance(); got != 40 {
		t.Fatalf("apply after close must be discarded, got %v", got)
	}
}

func TestTransferAppliesEchoedBalance(t *testing.T) {
	s := newStoreWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/transfer" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"sender_new_balance": 65.5}`))
	})

	if err := s.Transfer(context.Background(), "bob", 34.5); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := s.Balance(); got != 65.5 {
		t.Fatalf("echoed balance not applied, got %v", got)
	}
}

func TestLoadTransactionsNormalizesAndDedupes(t *testing.T) {
	s := newStoreWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"transactions": [
				{"id":"t2","sender_id":"a","receiver_id":"b","amount":5,"type":"debit","created_at":"2026-08-30T12:00:00Z"},
				{"id":"t1","sender_id":"b","receiver_id":"a","amount":9,"type":"deposit","created_at":"2026-08-30T11:00:00Z"}
			],
			"totalCount": 2
		}`))
	})

	total, err := s.LoadTransactions(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected totalCount 2, got %d", total)
	}

	txs := s.Transactions()
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].ID != "t2" || txs[0].Type != TypeWithdraw {
		t.Fatalf("unexpected head: %+v", txs[0])
	}

	// Reloading the same page must not grow the feed.
	if _, err := s.LoadTransactions(context.Background(), 1, 20); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := len(s.Transactions()); got != 2 {
		t.Fatalf("duplicate ids grew the feed: %d", got)
	}
}

func TestLoadTransactionsPagesStayNewestFirst(t *testing.T) {
	s := newStoreWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{
				"transactions": [
					{"id":"t4","amount":4,"type":"credit","created_at":"2026-08-30T14:00:00Z"},
					{"id":"t3","amount":3,"type":"credit","created_at":"2026-08-30T13:00:00Z"}
				],
				"totalCount": 4
			}`))
		case "2":
			_, _ = w.Write([]byte(`{
				"transactions": [
					{"id":"t2","amount":2,"type":"credit","created_at":"2026-08-30T12:00:00Z"},
					{"id":"t1","amount":1,"type":"credit","created_at":"2026-08-30T11:00:00Z"}
				],
				"totalCount": 4
			}`))
		default:
			_, _ = w.Write([]byte(`{"transactions": [], "totalCount": 4}`))
		}
	})

	if _, err := s.LoadTransactions(context.Background(), 1, 2); err != nil {
		t.Fatalf("page 1 failed: %v", err)
	}
	if _, err := s.LoadTransactions(context.Background(), 2, 2); err != nil {
		t.Fatalf("page 2 failed: %v", err)
	}

	txs := s.Transactions()
	want := []string{"t4", "t3", "t2", "t1"}
	if len(txs) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(txs))
	}
	for i := range want {
		if txs[i].ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], txs[i].ID)
		}
	}
}

func TestBindGatewayAppliesPushes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var auth gateway.AuthFrame
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"balance_update","balance":77}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transaction","transaction":{"id":"t9","amount":3,"type":"credit","created_at":"2026-08-30T12:00:00Z"}}`))
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	gw := gateway.New(gateway.Config{URL: "ws" + strings.TrimPrefix(server.URL, "http")})
	s := NewStore(nil)
	unbind := s.BindGateway(gw)
	defer unbind()

	gw.Connect("tok")
	defer gw.Disconnect()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.Balance() == 77 && len(s.Transactions()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.Balance() != 77 {
		t.Fatalf("push balance not applied, got %v", s.Balance())
	}
	txs := s.Transactions()
	if len(txs) != 1 || txs[0].ID != "t9" || txs[0].Type != TypeDeposit {
		t.Fatalf("push transaction not recorded: %+v", txs)
	}
}

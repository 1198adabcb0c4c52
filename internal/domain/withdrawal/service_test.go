package withdrawal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/gateway"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(api.NewClient(srv.URL, api.StaticToken("t"), time.Second, "test"))
}

func wire(id, status string, amount float64) api.Withdrawal {
	return api.Withdrawal{
		ID:           id,
		RequesterID:  "u1",
		TargetUserID: "u2",
		Amount:       amount,
		Status:       status,
		CreatedAt:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	s := NewService(nil)
	for _, amount := range []float64{0, -5} {
		if _, err := s.Create(context.Background(), "bob", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestCreateAppendsToSentFeed(t *testing.T) {
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/withdrawals" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			TargetUsername string  `json:"targetUsername"`
			Amount         float64 `json:"amount"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.TargetUsername != "bob" || body.Amount != 40 {
			t.Errorf("unexpected body: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(wire("w1", api.WithdrawalPending, 40))
	}))

	req, err := s.Create(context.Background(), "bob", 40)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if req.Status != StatusPending || req.Status.Terminal() {
		t.Fatalf("fresh request must be pending, got %v", req.Status)
	}

	sent := s.Sent()
	if len(sent) != 1 || sent[0].ID != "w1" {
		t.Fatalf("sent feed not updated: %+v", sent)
	}
}

func TestApproveResolvesPendingEntry(t *testing.T) {
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/withdrawals/pending":
			_ = json.NewEncoder(w).Encode([]api.Withdrawal{
				wire("w1", api.WithdrawalPending, 40),
				wire("w2", api.WithdrawalPending, 10),
			})
		case "/withdrawals/w1/approve":
			_ = json.NewEncoder(w).Encode(wire("w1", api.WithdrawalApproved, 40))
		default:
			http.NotFound(w, r)
		}
	}))

	if err := s.RefreshPending(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if len(s.Pending()) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(s.Pending()))
	}

	notified := 0
	defer s.Subscribe(func() { notified++ })()

	req, err := s.Approve(context.Background(), "w1")
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if req.Status != StatusApproved || !req.Status.Terminal() {
		t.Fatalf("expected terminal approved, got %v", req.Status)
	}

	pending := s.Pending()
	if len(pending) != 1 || pending[0].ID != "w2" {
		t.Fatalf("approved entry still pending: %+v", pending)
	}
	if notified == 0 {
		t.Fatal("subscriber not notified")
	}
}

func TestDecideConflictDropsPendingEntry(t *testing.T) {
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/withdrawals/pending":
			_ = json.NewEncoder(w).Encode([]api.Withdrawal{wire("w1", api.WithdrawalPending, 40)})
		case "/withdrawals/w1/reject":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"already_processed","message":"decided elsewhere"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	if err := s.RefreshPending(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	_, err := s.Reject(context.Background(), "w1")
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !AlreadyProcessed(err) {
		t.Fatalf("expected already_processed classification, got %v", err)
	}
	if len(s.Pending()) != 0 {
		t.Fatal("conflicted entry must leave the pending queue")
	}
}

func TestRefreshUpdatesInPlaceAndDedupes(t *testing.T) {
	status := api.WithdrawalPending
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/withdrawals/sent" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]api.Withdrawal{wire("w1", status, 40)})
	}))

	if err := s.RefreshSent(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	status = api.WithdrawalApproved
	if err := s.RefreshSent(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	sent := s.Sent()
	if len(sent) != 1 {
		t.Fatalf("refresh must not duplicate entries, got %d", len(sent))
	}
	if sent[0].Status != StatusApproved {
		t.Fatalf("refresh must update status in place, got %v", sent[0].Status)
	}
}

func TestBindGatewayResolvesPendingOnPush(t *testing.T) {
	s := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/withdrawals/pending" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]api.Withdrawal{wire("w1", api.WithdrawalPending, 40)})
	}))
	if err := s.RefreshPending(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	upgrader := websocket.Upgrader{}
	wsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var auth gateway.AuthFrame
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"withdrawal_rejected","withdrawal":{"id":"w1","status":"rejected","amount":40,"created_at":"2026-08-30T12:00:00Z"}}`))
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(wsSrv.Close)

	gw := gateway.New(gateway.Config{URL: "ws" + strings.TrimPrefix(wsSrv.URL, "http")})
	defer s.BindGateway(gw)()

	gw.Connect("tok")
	defer gw.Disconnect()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(s.Pending()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("push did not resolve pending entry: %+v", s.Pending())
}

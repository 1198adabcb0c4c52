// Package wallet holds the client-side source of truth for the user's
// balance: a plain observable store reconciling REST snapshots with
// WebSocket pushes. The most recent confirmed value wins, regardless
// of source.
package wallet

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/gateway"
	"github.com/luckbet/luckbet-go/internal/pkg/dedup"
	"github.com/luckbet/luckbet-go/internal/pkg/feed"
	"github.com/luckbet/luckbet-go/internal/pkg/retry"
)

// Snapshot is the store's observable state. Err set with Loaded true
// means stale-but-available: the last good balance stays displayed.
type Snapshot struct {
	Balance  float64
	Username string
	Loaded   bool
	Loading  bool
	Err      error
}

const transactionFeedSize = 100

// Store is the process-wide balance singleton. All mutation goes
// through Apply/ApplySnapshot/SetError; multiple UI surfaces read and
// subscribe, never write.
type Store struct {
	client *api.Client

	mu     sync.Mutex
	snap   Snapshot
	closed bool
	subs   map[int]func(Snapshot)
	nextID int

	inflight *dedup.Deduplicator[api.BalanceSnapshot]
	breaker  *retry.CircuitBreaker
	txs      *feed.History[Transaction]
}

// NewStore creates an empty store backed by the REST client.
func NewStore(client *api.Client) *Store {
	return &Store{
		client:   client,
		subs:     make(map[int]func(Snapshot)),
		inflight: dedup.New[api.BalanceSnapshot](),
		breaker:  retry.NewCircuitBreaker("wallet", 5, 30*time.Second),
		txs: feed.NewHistory(transactionFeedSize, func(t Transaction) string {
			return t.ID
		}),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Balance returns the current balance value.
func (s *Store) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Balance
}

// Subscribe registers an observer called with every state change, and
// immediately with the current state. Returns the unsubscribe func.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.snap
	s.mu.Unlock()

	fn(current)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Apply commits a confirmed balance. This is the single write path:
// whatever calls Apply last wins. A REST response landing after a
// newer push must simply not be Applied by its caller (see Refresh).
func (s *Store) Apply(balance float64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snap.Balance = balance
	s.snap.Loaded = true
	s.snap.Loading = false
	s.snap.Err = nil
	s.notifyLocked()
}

// ApplySnapshot commits a REST snapshot (balance plus username).
func (s *Store) ApplySnapshot(snap api.BalanceSnapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snap.Balance = snap.Balance
	s.snap.Username = snap.Username
	s.snap.Loaded = true
	s.snap.Loading = false
	s.snap.Err = nil
	s.notifyLocked()
}

// SetError flags a failed refresh. The previous balance stays visible;
// the store never zeroes on failure.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snap.Loading = false
	s.snap.Err = err
	s.notifyLocked()
}

// Close tears the store down; later Applies are discarded so a
// torn-down view can't commit stale updates.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = map[int]func(Snapshot){}
}

// notifyLocked snapshots state and subscribers, then releases the lock
// before invoking callbacks.
func (s *Store) notifyLocked() {
	snap := s.snap
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Refresh fetches the REST snapshot, collapsing concurrent calls into
// one request, and applies the result. A failure keeps the stale value
// and sets the error flag.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.snap.Loading = true
	s.notifyLocked()

	snap, shared, err := s.inflight.Do("wallet/balance", func() (api.BalanceSnapshot, error) {
		return retry.DoWithBreaker(ctx, s.breaker, "wallet.balance", retry.APIConfig(), func(ctx context.Context) (api.BalanceSnapshot, error) {
			return s.client.GetBalance(ctx)
		})
	})
	if err != nil {
		log.Warn().Err(err).Msg("balance refresh failed, keeping stale value")
		s.SetError(err)
		return err
	}
	if shared {
		log.Debug().Msg("balance refresh shared an in-flight fetch")
	}
	s.ApplySnapshot(snap)
	return nil
}

// BindGateway subscribes the store to balance and transaction pushes.
// Pushes carry the server's most current absolute balance and always
// overwrite. Returns an unbind func.
func (s *Store) BindGateway(gw *gateway.Gateway) func() {
	unsubBalance := gw.Subscribe(gateway.TypeBalanceUpdate, func(frame json.RawMessage) {
		var f struct {
			Balance float64 `json:"balance"`
		}
		if err := json.Unmarshal(frame, &f); err != nil {
			return
		}
		s.Apply(f.Balance)
	})
	unsubTx := gw.Subscribe(gateway.TypeTransaction, func(frame json.RawMessage) {
		// The ledger entry rides nested so its own type field does not
		// collide with the frame type.
		var f struct {
			Transaction api.Transaction `json:"transaction"`
		}
		if err := json.Unmarshal(frame, &f); err != nil || f.Transaction.ID == "" {
			return
		}
		s.txs.Add(FromAPI(f.Transaction))
	})
	return func() {
		unsubBalance()
		unsubTx()
	}
}

// Transactions returns the local feed, newest first.
func (s *Store) Transactions() []Transaction {
	return s.txs.Items()
}

// LoadTransactions pulls one ledger page into the feed. Pages arrive
// newest first, so each page is appended behind what is already
// loaded; live pushes keep entering at the head.
func (s *Store) LoadTransactions(ctx context.Context, page, pageSize int) (int, error) {
	res, err := retry.Do(ctx, "wallet.transactions", retry.DatabaseConfig(), func(ctx context.Context) (api.TransactionPage, error) {
		return s.client.ListTransactions(ctx, page, pageSize)
	})
	if err != nil {
		return 0, err
	}
	batch := make([]Transaction, 0, len(res.Transactions))
	for _, t := range res.Transactions {
		batch = append(batch, FromAPI(t))
	}
	s.txs.AppendBatch(batch)
	return res.TotalCount, nil
}

// Transfer sends amount to another user and synchronously applies the
// echoed balance when present, saving a round-trip of stale display.
func (s *Store) Transfer(ctx context.Context, receiverUsername string, amount float64) error {
	res, err := s.client.Transfer(ctx, receiverUsername, amount)
	if err != nil {
		return err
	}
	if res.SenderNewBalance != nil {
		s.Apply(*res.SenderNewBalance)
	}
	return nil
}

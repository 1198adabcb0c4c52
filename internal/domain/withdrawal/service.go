package withdrawal

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/gateway"
	"github.com/luckbet/luckbet-go/internal/pkg/feed"
	"github.com/luckbet/luckbet-go/internal/pkg/retry"
)

const feedSize = 50

// Service tracks withdrawal requests on both sides: the pending queue
// awaiting this user's decision and the requests this user sent.
// Gateway pushes resolve pending entries without a refetch.
type Service struct {
	client *api.Client

	mu      sync.Mutex
	pending *feed.History[Request]
	sent    *feed.History[Request]
	subs    map[int]func()
	nextID  int
}

func NewService(client *api.Client) *Service {
	key := func(r Request) string { return r.ID }
	return &Service{
		client:  client,
		pending: feed.NewHistory(feedSize, key),
		sent:    feed.NewHistory(feedSize, key),
		subs:    make(map[int]func()),
	}
}

// Subscribe registers a change callback and returns an unsubscribe
// func. The callback fires whenever either feed changes.
func (s *Service) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Service) notify() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Pending lists requests awaiting this user's decision, newest first.
func (s *Service) Pending() []Request { return s.pending.Items() }

// Sent lists requests this user created, newest first.
func (s *Service) Sent() []Request { return s.sent.Items() }

// Create submits a withdrawal request against the target user.
func (s *Service) Create(ctx context.Context, targetUsername string, amount float64) (Request, error) {
	if amount <= 0 {
		return Request{}, ErrInvalidAmount
	}

	res, err := retry.Do(ctx, "withdrawal.create", retry.APIConfig(), func(ctx context.Context) (api.Withdrawal, error) {
		return s.client.CreateWithdrawal(ctx, targetUsername, amount)
	})
	if err != nil {
		return Request{}, err
	}

	req := fromAPI(res)
	s.sent.Add(req)
	s.notify()
	log.Info().Str("withdrawal_id", req.ID).Float64("amount", amount).Msg("withdrawal requested")
	return req, nil
}

// Approve decides a pending request in favor. A request another
// approver already resolved leaves the queue without an error
// surfacing beyond the returned one.
func (s *Service) Approve(ctx context.Context, id string) (Request, error) {
	return s.decide(ctx, id, "withdrawal.approve", s.client.ApproveWithdrawal)
}

// Reject declines a pending request.
func (s *Service) Reject(ctx context.Context, id string) (Request, error) {
	return s.decide(ctx, id, "withdrawal.reject", s.client.RejectWithdrawal)
}

func (s *Service) decide(ctx context.Context, id, name string, call func(context.Context, string) (api.Withdrawal, error)) (Request, error) {
	res, err := retry.Do(ctx, name, retry.APIConfig(), func(ctx context.Context) (api.Withdrawal, error) {
		return call(ctx, id)
	})
	if err != nil {
		// A conflict means the request is no longer pending here
		// either.
		if AlreadyProcessed(err) && s.pending.Remove(id) {
			s.notify()
		}
		return Request{}, err
	}

	req := fromAPI(res)
	changed := s.pending.Remove(id)
	if s.sent.Update(req) {
		changed = true
	}
	if changed {
		s.notify()
	}
	return req, nil
}

// RefreshPending reloads the pending queue from the server.
func (s *Service) RefreshPending(ctx context.Context) error {
	return s.refresh(ctx, "withdrawal.pending", s.client.PendingWithdrawals, s.pending)
}

// RefreshSent reloads the sent list from the server.
func (s *Service) RefreshSent(ctx context.Context) error {
	return s.refresh(ctx, "withdrawal.sent", s.client.SentWithdrawals, s.sent)
}

func (s *Service) refresh(ctx context.Context, name string, call func(context.Context) ([]api.Withdrawal, error), dst *feed.History[Request]) error {
	res, err := retry.Do(ctx, name, retry.DatabaseConfig(), func(ctx context.Context) ([]api.Withdrawal, error) {
		return call(ctx)
	})
	if err != nil {
		return err
	}

	changed := false
	batch := make([]Request, 0, len(res))
	for _, w := range res {
		req := fromAPI(w)
		if dst.Update(req) {
			changed = true
			continue
		}
		batch = append(batch, req)
	}
	if dst.AddBatch(batch) > 0 {
		changed = true
	}
	if changed {
		s.notify()
	}
	return nil
}

// BindGateway resolves pending entries as decision pushes arrive.
// Returns an unbind func.
func (s *Service) BindGateway(gw *gateway.Gateway) func() {
	handle := func(frame json.RawMessage) {
		var f struct {
			Withdrawal api.Withdrawal `json:"withdrawal"`
		}
		if err := json.Unmarshal(frame, &f); err != nil || f.Withdrawal.ID == "" {
			return
		}

		req := fromAPI(f.Withdrawal)
		changed := s.pending.Remove(req.ID)
		if s.sent.Update(req) {
			changed = true
		}
		if changed {
			s.notify()
		}
	}

	unsubApproved := gw.Subscribe(gateway.TypeWithdrawalApproved, handle)
	unsubRejected := gw.Subscribe(gateway.TypeWithdrawalRejected, handle)
	return func() {
		unsubApproved()
		unsubRejected()
	}
}

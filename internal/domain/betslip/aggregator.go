// Package betslip accumulates selected bets and derives the combined
// odds and potential payout. Derived values are display-only: the
// server recomputes both at placement time and its answer is the one
// trusted for the resulting transaction.
package betslip

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/pkg/validator"
)

const (
	maxSelections = 20

	// DefaultMaxStake is the platform-wide stake ceiling applied on
	// top of the balance bound. The server enforces its own limit;
	// this one keeps the slip from offering stakes the backend would
	// refuse anyway.
	DefaultMaxStake = 10000
)

// BalanceSource reads the current confirmed balance; satisfied by the
// wallet store.
type BalanceSource interface {
	Balance() float64
}

// BalanceSink receives a server-confirmed balance; satisfied by the
// wallet store.
type BalanceSink interface {
	Apply(balance float64)
}

// Placer submits the slip; satisfied by the API client.
type Placer interface {
	PlaceBets(ctx context.Context, req api.PlaceBetRequest) (api.PlaceBetResult, error)
	Authenticated() bool
}

// Aggregator is the bet slip state machine.
type Aggregator struct {
	placer  Placer
	balance BalanceSource
	sink    BalanceSink

	mu         sync.Mutex
	state      State
	selections []Selection
	stake      float64
	maxStake   float64
	promoCode  string
	accOdds    float64
	potWin     float64
}

// New creates an empty slip.
func New(placer Placer, balance BalanceSource, sink BalanceSink) *Aggregator {
	return &Aggregator{
		placer:   placer,
		balance:  balance,
		sink:     sink,
		maxStake: DefaultMaxStake,
		accOdds:  1,
	}
}

// SetMaxStake overrides the stake ceiling. Non-positive values are
// ignored.
func (a *Aggregator) SetMaxStake(limit float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 {
		return
	}
	a.maxStake = limit
	if a.stake > limit {
		a.stake = limit
		a.recalcLocked()
	}
}

// State returns the slip lifecycle state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Selections returns a copy of the current legs in slip order.
func (a *Aggregator) Selections() []Selection {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Selection, len(a.selections))
	copy(out, a.selections)
	return out
}

// Stake returns the current stake.
func (a *Aggregator) Stake() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stake
}

// AccumulatorOdds is the product of every leg's decimal odds.
func (a *Aggregator) AccumulatorOdds() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accOdds
}

// PotentialWin is stake times accumulator odds.
func (a *Aggregator) PotentialWin() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.potWin
}

// SetPromoCode attaches an optional promo code.
func (a *Aggregator) SetPromoCode(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.promoCode = code
}

// Add appends a selection, or replaces in place the selection sharing
// its (match, matchType, market) identity. Rejected while the slip is
// submitting.
func (a *Aggregator) Add(sel Selection) error {
	if sel.MatchID == "" || sel.MarketKey == "" || sel.Odds <= 1.0 {
		return ErrInvalidSelection
	}
	if sel.MatchType != Prematch && sel.MatchType != Live {
		return ErrInvalidSelection
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateSubmitting {
		return ErrSubmitting
	}

	key := sel.key()
	for i := range a.selections {
		if a.selections[i].key() == key {
			a.selections[i] = sel
			a.recalcLocked()
			return nil
		}
	}
	if len(a.selections) >= maxSelections {
		return fmt.Errorf("slip full: %d selections max", maxSelections)
	}
	a.selections = append(a.selections, sel)
	a.recalcLocked()
	return nil
}

// Remove drops the selection with the given identity. The slip goes
// back to empty when the last leg leaves.
func (a *Aggregator) Remove(matchID string, matchType MatchType, marketKey string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateSubmitting {
		return false
	}

	key := Selection{MatchID: matchID, MatchType: matchType, MarketKey: marketKey}.key()
	for i := range a.selections {
		if a.selections[i].key() == key {
			a.selections = append(a.selections[:i], a.selections[i+1:]...)
			a.recalcLocked()
			return true
		}
	}
	return false
}

// SetStake applies a raw numeric edit, clamped to [0, cap] where cap
// is the lower of the balance and the stake ceiling. Zero is a legal
// transient value here; placement enforces the minimum.
func (a *Aggregator) SetStake(amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateSubmitting {
		return
	}

	if limit := a.stakeCapLocked(); amount > limit {
		amount = limit
	}
	if amount < 0 {
		amount = 0
	}
	a.stake = amount
	a.recalcLocked()
}

// IncrementStake nudges the stake by delta, clamped to [1, cap] with
// cap as in SetStake. The lower bound is applied last: even from
// stake 0 an increment never lands below 1. With balance 0 that
// leaves stake above the balance and PlaceBet reports
// insufficient_balance.
func (a *Aggregator) IncrementStake(delta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateSubmitting {
		return
	}

	next := a.stake + delta
	if limit := a.stakeCapLocked(); next > limit {
		next = limit
	}
	if next < 1 {
		next = 1
	}
	a.stake = next
	a.recalcLocked()
}

// Reset clears the slip explicitly.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateSubmitting {
		return
	}
	a.clearLocked()
}

// PlaceBet validates the slip, submits it and clears it on success.
// On failure the slip stays intact in BUILDING so the user can retry
// without re-entering anything.
func (a *Aggregator) PlaceBet(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateSubmitting {
		a.mu.Unlock()
		return ErrSubmitting
	}
	if a.placer == nil || !a.placer.Authenticated() {
		a.mu.Unlock()
		return ErrAuthRequired
	}
	if a.stake < 1 {
		a.mu.Unlock()
		return ErrBelowMinimum
	}
	if a.stake > a.balanceLocked() {
		a.mu.Unlock()
		return ErrInsufficientBalance
	}
	if len(a.selections) == 0 {
		a.mu.Unlock()
		return ErrNoSelections
	}

	req := api.PlaceBetRequest{
		Bets:            make([]api.BetPayload, 0, len(a.selections)),
		Stake:           a.stake,
		AccumulatorOdds: a.accOdds,
		PotentialWin:    a.potWin,
		PromoCode:       a.promoCode,
	}
	for _, sel := range a.selections {
		req.Bets = append(req.Bets, sel.payload())
	}
	a.state = StateSubmitting
	a.mu.Unlock()

	if fieldErrs := validator.Validate(req); fieldErrs != nil {
		a.setState(StateBuilding)
		return fmt.Errorf("invalid slip payload: %v", fieldErrs)
	}

	res, err := a.placer.PlaceBets(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("bet placement failed, slip preserved")
		a.setState(StateBuilding)
		return err
	}

	a.mu.Lock()
	a.state = StateSubmitted
	a.clearLocked()
	a.mu.Unlock()

	if res.NewBalance != nil && a.sink != nil {
		a.sink.Apply(*res.NewBalance)
	}
	log.Info().Float64("stake", req.Stake).Float64("odds", req.AccumulatorOdds).Msg("bet placed")
	return nil
}

func (a *Aggregator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Aggregator) balanceLocked() float64 {
	if a.balance == nil {
		return 0
	}
	return a.balance.Balance()
}

// stakeCapLocked is the effective upper stake bound: the balance or
// the stake ceiling, whichever is lower.
func (a *Aggregator) stakeCapLocked() float64 {
	bal := a.balanceLocked()
	if bal > a.maxStake {
		return a.maxStake
	}
	return bal
}

// recalcLocked refreshes the derived values and the lifecycle state on
// every mutation.
func (a *Aggregator) recalcLocked() {
	odds := 1.0
	for _, sel := range a.selections {
		odds *= sel.Odds
	}
	a.accOdds = odds
	a.potWin = a.stake * odds

	if len(a.selections) == 0 {
		if a.state == StateBuilding {
			a.state = StateEmpty
		}
		return
	}
	if a.state == StateEmpty || a.state == StateSubmitted {
		a.state = StateBuilding
	}
}

func (a *Aggregator) clearLocked() {
	a.selections = nil
	a.stake = 0
	a.promoCode = ""
	a.accOdds = 1
	a.potWin = 0
	a.state = StateEmpty
}

package betslip

import "github.com/luckbet/luckbet-go/internal/api"

// MatchType distinguishes pre-match from in-play markets.
type MatchType string

const (
	Prematch MatchType = "prematch"
	Live     MatchType = "live"
)

// Selection is one leg of the slip. Identity is the
// (MatchID, MatchType, MarketKey) tuple: picking a different outcome
// for an already-selected market replaces the old pick in place.
type Selection struct {
	MatchID   string
	MatchType MatchType
	MarketKey string
	BetType   string
	Odds      float64
	HomeTeam  string
	AwayTeam  string
	League    string
}

func (s Selection) key() string {
	return s.MatchID + "|" + string(s.MatchType) + "|" + s.MarketKey
}

func (s Selection) payload() api.BetPayload {
	return api.BetPayload{
		MatchID:   s.MatchID,
		MatchType: string(s.MatchType),
		MarketKey: s.MarketKey,
		BetType:   s.BetType,
		Odds:      s.Odds,
	}
}

// State of the slip lifecycle.
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateSubmitting
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

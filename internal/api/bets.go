package api

import (
	"context"
	"net/http"
)

// BetPayload is one accumulator leg as submitted for placement.
type BetPayload struct {
	MatchID   string  `json:"matchId" validate:"required"`
	MatchType string  `json:"matchType" validate:"match_type"`
	MarketKey string  `json:"marketKey" validate:"required"`
	BetType   string  `json:"betType" validate:"required"`
	Odds      float64 `json:"odds" validate:"gt=1"`
}

// PlaceBetRequest is the full slip payload. AccumulatorOdds and
// PotentialWin are display values; the server recomputes both and its
// answer is authoritative.
type PlaceBetRequest struct {
	Bets            []BetPayload `json:"bets" validate:"min=1,dive"`
	Stake           float64      `json:"stake" validate:"gte=1"`
	AccumulatorOdds float64      `json:"accumulatorOdds" validate:"gt=0"`
	PotentialWin    float64      `json:"potentialWin" validate:"gte=0"`
	PromoCode       string       `json:"promoCode,omitempty"`
}

// PlaceBetResult echoes the new balance when the server includes it.
type PlaceBetResult struct {
	NewBalance *float64 `json:"newBalance"`
}

// PlaceBets submits the slip.
func (c *Client) PlaceBets(ctx context.Context, req PlaceBetRequest) (PlaceBetResult, error) {
	var res PlaceBetResult
	err := c.do(ctx, http.MethodPost, "/bets/place", req, &res)
	return res, err
}

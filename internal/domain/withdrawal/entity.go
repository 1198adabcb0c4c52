package withdrawal

import (
	"time"

	"github.com/luckbet/luckbet-go/internal/api"
)

// Status of a withdrawal request. Pending is the only non-terminal
// state.
type Status string

const (
	StatusPending  Status = api.WithdrawalPending
	StatusApproved Status = api.WithdrawalApproved
	StatusRejected Status = api.WithdrawalRejected
	StatusExpired  Status = api.WithdrawalExpired
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool { return s != StatusPending }

// Request is one withdrawal in domain form.
type Request struct {
	ID           string
	RequesterID  string
	TargetUserID string
	Amount       float64
	Status       Status
	ApprovedBy   string
	ApprovedAt   *time.Time
	CreatedAt    time.Time
}

func fromAPI(w api.Withdrawal) Request {
	r := Request{
		ID:           w.ID,
		RequesterID:  w.RequesterID,
		TargetUserID: w.TargetUserID,
		Amount:       w.Amount,
		Status:       Status(w.Status),
		ApprovedAt:   w.ApprovedAt,
		CreatedAt:    w.CreatedAt,
	}
	if w.ApprovedBy != nil {
		r.ApprovedBy = *w.ApprovedBy
	}
	return r
}

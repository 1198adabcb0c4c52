package api

import (
	"context"
	"net/http"
	"time"
)

// Withdrawal statuses. Once a request leaves pending its state is
// terminal.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
	WithdrawalExpired  = "expired"
)

// Withdrawal is the wire shape of a withdrawal request.
type Withdrawal struct {
	ID           string     `json:"id"`
	RequesterID  string     `json:"requester_id"`
	TargetUserID string     `json:"target_user_id"`
	Amount       float64    `json:"amount"`
	Status       string     `json:"status"`
	ApprovedBy   *string    `json:"approved_by"`
	ApprovedAt   *time.Time `json:"approved_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateWithdrawal requests a debit of amount from the target user.
func (c *Client) CreateWithdrawal(ctx context.Context, targetUsername string, amount float64) (Withdrawal, error) {
	req := struct {
		TargetUsername string  `json:"targetUsername"`
		Amount         float64 `json:"amount"`
	}{targetUsername, amount}

	var res Withdrawal
	err := c.do(ctx, http.MethodPost, "/withdrawals", req, &res)
	return res, err
}

// ApproveWithdrawal approves a pending request.
func (c *Client) ApproveWithdrawal(ctx context.Context, id string) (Withdrawal, error) {
	var res Withdrawal
	err := c.do(ctx, http.MethodPost, "/withdrawals/"+id+"/approve", nil, &res)
	return res, err
}

// RejectWithdrawal rejects a pending request.
func (c *Client) RejectWithdrawal(ctx context.Context, id string) (Withdrawal, error) {
	var res Withdrawal
	err := c.do(ctx, http.MethodPost, "/withdrawals/"+id+"/reject", nil, &res)
	return res, err
}

// PendingWithdrawals lists requests awaiting this user's approval.
func (c *Client) PendingWithdrawals(ctx context.Context) ([]Withdrawal, error) {
	var res []Withdrawal
	err := c.do(ctx, http.MethodGet, "/withdrawals/pending", nil, &res)
	return res, err
}

// SentWithdrawals lists requests this user created.
func (c *Client) SentWithdrawals(ctx context.Context) ([]Withdrawal, error) {
	var res []Withdrawal
	err := c.do(ctx, http.MethodGet, "/withdrawals/sent", nil, &res)
	return res, err
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// BalanceSnapshot is the REST view of the wallet.
type BalanceSnapshot struct {
	Balance  float64 `json:"balance"`
	Username string  `json:"username"`
}

// Transaction is the wire shape of a ledger entry.
type Transaction struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Amount     float64   `json:"amount"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransactionPage is one page of the transaction ledger, newest first.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	TotalCount   int           `json:"totalCount"`
}

// TransferResult echoes the sender's balance after a confirmed
// transfer when the server includes it.
type TransferResult struct {
	SenderNewBalance *float64 `json:"sender_new_balance"`
}

// AdjustResult echoes the target balance after credit/debit.
type AdjustResult struct {
	NewBalance *float64 `json:"new_balance"`
}

// GetBalance fetches the authoritative balance snapshot.
func (c *Client) GetBalance(ctx context.Context) (BalanceSnapshot, error) {
	var snap BalanceSnapshot
	err := c.do(ctx, http.MethodGet, "/wallet/balance", nil, &snap)
	return snap, err
}

// Transfer moves amount to another user.
func (c *Client) Transfer(ctx context.Context, receiverUsername string, amount float64) (TransferResult, error) {
	req := struct {
		ReceiverUsername string  `json:"receiverUsername"`
		Amount           float64 `json:"amount"`
	}{receiverUsername, amount}

	var res TransferResult
	err := c.do(ctx, http.MethodPost, "/wallet/transfer", req, &res)
	return res, err
}

// Credit adds amount to the target user's wallet (admin).
func (c *Client) Credit(ctx context.Context, targetUsername string, amount float64) (AdjustResult, error) {
	return c.adjust(ctx, "/wallet/credit", targetUsername, amount)
}

// Debit removes amount from the target user's wallet (admin).
func (c *Client) Debit(ctx context.Context, targetUsername string, amount float64) (AdjustResult, error) {
	return c.adjust(ctx, "/wallet/debit", targetUsername, amount)
}

func (c *Client) adjust(ctx context.Context, path, targetUsername string, amount float64) (AdjustResult, error) {
	req := struct {
		TargetUsername string  `json:"targetUsername"`
		Amount         float64 `json:"amount"`
	}{targetUsername, amount}

	var res AdjustResult
	err := c.do(ctx, http.MethodPost, path, req, &res)
	return res, err
}

// ListTransactions fetches one ledger page.
func (c *Client) ListTransactions(ctx context.Context, page, pageSize int) (TransactionPage, error) {
	var res TransactionPage
	path := fmt.Sprintf("/rbac/transactions?page=%d&pageSize=%d", page, pageSize)
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res, err
}

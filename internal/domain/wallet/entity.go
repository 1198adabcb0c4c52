package wallet

import (
	"time"

	"github.com/luckbet/luckbet-go/internal/api"
)

// TransactionType is the normalized ledger entry class. The server's
// type field is an open set; anything unrecognized lands in Other.
type TransactionType string

const (
	TypeDeposit  TransactionType = "deposit"
	TypeWithdraw TransactionType = "withdraw"
	TypeOther    TransactionType = "other"
)

// Transaction is an immutable ledger entry as held client-side.
type Transaction struct {
	ID         string
	SenderID   string
	ReceiverID string
	Amount     float64
	Type       TransactionType
	RawType    string
	CreatedAt  time.Time
}

// NormalizeType folds the server's open type set into the three
// classes the UI distinguishes.
func NormalizeType(raw string) TransactionType {
	switch raw {
	case "deposit", "credit", "topup", "transfer_in":
		return TypeDeposit
	case "withdraw", "withdrawal", "debit", "transfer_out":
		return TypeWithdraw
	default:
		return TypeOther
	}
}

// FromAPI converts a wire transaction into the domain shape.
func FromAPI(t api.Transaction) Transaction {
	return Transaction{
		ID:         t.ID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Amount:     t.Amount,
		Type:       NormalizeType(t.Type),
		RawType:    t.Type,
		CreatedAt:  t.CreatedAt,
	}
}

package models

import (
	"time"

	"github.com/prime-rewards/internal/types"
)

// Transaction represents an append-only ledger entry
type Transaction struct {
	ID            string                  `json:"id" db:"id"`
	UserID        int64                   `json:"userId" db:"user_id"`
	Type          types.TransactionType   `json:"type" db:"type"`
	Amount        float64                 `json:"amount" db:"amount"`
	Description   string                  `json:"description" db:"description"`
	Status        types.TransactionStatus `json:"status" db:"status"`
	Method        string                  `json:"method,omitempty" db:"method"`
	AccountNumber string                  `json:"accountNumber,omitempty" db:"account_number"`
	CreatedAt     time.Time               `json:"createdAt" db:"created_at"`
}

// IsCredit reports whether the entry increases the user balance
func (t *Transaction) IsCredit() bool {
	return t.Type != types.TypeWithdraw
}

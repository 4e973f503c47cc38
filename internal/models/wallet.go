package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the per-user ledger pair. Balance is spendable; EscrowBalance is
// held against claimed tasks and inaccessible to either party until release
// or settlement. Both fields are kept >= 0 by rejecting any movement that
// would overdraw them, never by clamping.
type Wallet struct {
	UserID        uuid.UUID       `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	EscrowBalance decimal.Decimal `json:"escrow_balance"`
}

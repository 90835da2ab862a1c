package domain

import "time"

// TransactionType is the business reason for a ledger movement.
type TransactionType string

const (
	TxGeneration TransactionType = "generation"
	TxRefund     TransactionType = "refund"
	TxGrant      TransactionType = "grant"
	TxAdjustment TransactionType = "adjustment"
)

// CreditTransaction is one append-only row of a user's audit trail.
// Amount is negative for debits and positive for credits.
type CreditTransaction struct {
	ID           string          `json:"id" bson:"_id"`
	UserID       string          `json:"user_id" bson:"user_id"`
	Amount       int64           `json:"amount" bson:"amount"`
	Type         TransactionType `json:"type" bson:"type"`
	Description  string          `json:"description" bson:"description"`
	GenerationID string          `json:"generation_id,omitempty" bson:"generation_id,omitempty"`
	BalanceAfter int64           `json:"balance_after" bson:"balance_after"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
}

// TransactionMeta describes the transaction row written alongside a balance change.
type TransactionMeta struct {
	Type         TransactionType
	Description  string
	GenerationID string
}

// Account is the ledger view of a user as seen inside an exclusive scope.
type Account struct {
	UserID  string
	Balance int64
	Tier    Tier
	Frozen  bool
}

// AdjustResult is returned by a successful balance adjustment.
type AdjustResult struct {
	NewBalance    int64
	TransactionID string
}

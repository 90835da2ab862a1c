package ports

import (
	"context"

	"github.com/influencerlab/studio/internal/core/domain"
)

// GrantInput is an operator-initiated balance change.
type GrantInput struct {
	UserID      string
	Amount      int64
	Type        domain.TransactionType // TxGrant or TxAdjustment
	Description string
}

// TransactionPage is one page of a user's audit trail.
type TransactionPage struct {
	Items []*domain.CreditTransaction
	Total int64
	Page  int
	Limit int
}

// LedgerReport is the result of an integrity check.
type LedgerReport struct {
	UserID            string
	Balance           int64
	TransactionsTotal int64
	Consistent        bool
}

type LedgerService interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Transactions(ctx context.Context, userID string, page, limit int) (*TransactionPage, error)
	Grant(ctx context.Context, input GrantInput) (*domain.AdjustResult, error)
	Verify(ctx context.Context, userID string) (*LedgerReport, error)
}

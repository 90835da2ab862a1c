package ports

import (
	"context"

	"github.com/influencerlab/studio/internal/core/domain"
)

// LedgerTx is the set of writes allowed inside a user's exclusive scope.
// Everything written through it commits or rolls back as one unit.
type LedgerTx interface {
	// Account returns the scoped user's live balance, tier and frozen flag.
	Account(ctx context.Context) (*domain.Account, error)

	// Adjust applies delta to the balance and appends one transaction row.
	// A negative delta that would make the balance negative fails with
	// domain.ErrInsufficientFunds and writes nothing.
	Adjust(ctx context.Context, delta int64, meta domain.TransactionMeta) (*domain.AdjustResult, error)

	// CreateGeneration inserts a new generation record.
	CreateGeneration(ctx context.Context, g *domain.Generation) error

	// SumTransactions returns the sum of all transaction amounts of the user.
	SumTransactions(ctx context.Context) (int64, error)

	// MarkRefunded flips the generation's refunded flag. It returns false when
	// the flag was already set.
	MarkRefunded(ctx context.Context, generationID string) (bool, error)
}

// LedgerRepository owns user balances and the append-only transaction log.
type LedgerRepository interface {
	// WithinUserScope runs fn while holding the exclusive scope on userID's
	// ledger row. Calls for the same user are serialized; calls for different
	// users do not contend. Returns domain.ErrUserNotFound for unknown users.
	WithinUserScope(ctx context.Context, userID string, fn func(ctx context.Context, tx LedgerTx) error) error

	Balance(ctx context.Context, userID string) (int64, error)
	// ListTransactions returns one page of the user's transactions, newest first.
	ListTransactions(ctx context.Context, userID string, page, limit int) ([]*domain.CreditTransaction, int64, error)
	Freeze(ctx context.Context, userID string) error
}

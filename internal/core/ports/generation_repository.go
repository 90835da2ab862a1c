package ports

import (
	"context"
	"time"

	"github.com/influencerlab/studio/internal/core/domain"
)

// GenerationFilter carries the optional list filters. UserID is always set by
// the service layer.
type GenerationFilter struct {
	UserID string
	Type   domain.GenerationType   // optional
	Status domain.GenerationStatus // optional
	Page   int                     // 1-based
	Limit  int
}

// GenerationRepository defines persistence operations for generation records.
// Records are created inside a ledger scope (LedgerTx.CreateGeneration).
type GenerationRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Generation, error)

	// UpdateStatus applies the transition to the stored record. It fails with
	// domain.ErrGenerationNotFound or domain.ErrInvalidTransition, and is a
	// no-op when the same terminal state is applied twice.
	UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*domain.Generation, error)

	// ListByUser returns one page ordered by created_at desc, id desc, plus the total.
	ListByUser(ctx context.Context, filter GenerationFilter) ([]*domain.Generation, int64, error)
	CountByUser(ctx context.Context, userID string) (int64, error)

	// ListByStatus returns records in status last updated before olderThan.
	ListByStatus(ctx context.Context, status domain.GenerationStatus, olderThan time.Time) ([]*domain.Generation, error)
	// ListUnrefundedFailures returns failed records whose refund has not been booked.
	ListUnrefundedFailures(ctx context.Context) ([]*domain.Generation, error)
}

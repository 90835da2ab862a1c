package ports

import (
	"context"

	"github.com/influencerlab/studio/internal/core/domain"
)

// UserRepository defines the interface for user account persistence.
// Credits are never written here; they move only through LedgerRepository.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

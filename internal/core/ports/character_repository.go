package ports

import (
	"context"

	"github.com/influencerlab/studio/internal/core/domain"
)

// CharacterRepository defines persistence operations for characters. Every
// lookup is owner-scoped.
type CharacterRepository interface {
	Create(ctx context.Context, c *domain.Character) error
	FindByID(ctx context.Context, id, ownerID string) (*domain.Character, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Character, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Character, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	// Delete removes the character only. Generations referencing it are left intact.
	Delete(ctx context.Context, id, ownerID string) error
}

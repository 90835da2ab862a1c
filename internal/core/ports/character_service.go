package ports

import (
	"context"

	"github.com/influencerlab/studio/internal/core/domain"
)

// CreateCharacterInput carries the descriptive attributes of a new character.
type CreateCharacterInput struct {
	OwnerID     string
	Name        string
	Description string
	Gender      string
	Age         int
	Ethnicity   string
	HairColor   string
	HairStyle   string
	EyeColor    string
	BodyType    string
	ArtStyle    string
}

type CharacterService interface {
	Create(ctx context.Context, input CreateCharacterInput) (*domain.Character, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Character, error)
	List(ctx context.Context, ownerID string) ([]*domain.Character, error)
	Delete(ctx context.Context, ownerID, id string) error
}

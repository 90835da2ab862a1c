package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

const maxCharacterAge = 120

// CharacterService manages the influencer profiles a user can reference from
// generation requests.
type CharacterService struct {
	repo ports.CharacterRepository
	log  zerolog.Logger
}

func NewCharacterService(repo ports.CharacterRepository, log zerolog.Logger) *CharacterService {
	return &CharacterService{repo: repo, log: log}
}

func (s *CharacterService) Create(ctx context.Context, in ports.CreateCharacterInput) (*domain.Character, error) {
	if in.OwnerID == "" {
		return nil, domain.ErrUnauthorized
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidRequest)
	}
	style := strings.ToLower(strings.TrimSpace(in.ArtStyle))
	if style == "" {
		return nil, fmt.Errorf("%w: art_style is required", domain.ErrInvalidRequest)
	}
	if !domain.IsKnownStyle(style) {
		return nil, fmt.Errorf("%w: art_style must be one of: %s", domain.ErrInvalidRequest, strings.Join(domain.ArtStyles, ", "))
	}
	if in.Age < 0 || in.Age > maxCharacterAge {
		return nil, fmt.Errorf("%w: age must be between 0 and %d", domain.ErrInvalidRequest, maxCharacterAge)
	}

	c := &domain.Character{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Gender:      strings.TrimSpace(in.Gender),
		Age:         in.Age,
		Ethnicity:   strings.TrimSpace(in.Ethnicity),
		HairColor:   strings.TrimSpace(in.HairColor),
		HairStyle:   strings.TrimSpace(in.HairStyle),
		EyeColor:    strings.TrimSpace(in.EyeColor),
		BodyType:    strings.TrimSpace(in.BodyType),
		ArtStyle:    style,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info().Str("character_id", c.ID).Str("owner_id", c.OwnerID).Msg("character created")
	return c, nil
}

func (s *CharacterService) Get(ctx context.Context, ownerID, id string) (*domain.Character, error) {
	return s.repo.FindByID(ctx, id, ownerID)
}

func (s *CharacterService) List(ctx context.Context, ownerID string) ([]*domain.Character, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Delete removes the character. Generations that reference it keep their
// character id and simply render it as unresolved.
func (s *CharacterService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.log.Info().Str("character_id", id).Str("owner_id", ownerID).Msg("character deleted")
	return nil
}

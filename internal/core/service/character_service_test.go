package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

func TestCharacterService_Create(t *testing.T) {
	db := newMemDB()
	svc := NewCharacterService(&memCharacters{db: db}, zerolog.Nop())
	ctx := context.Background()

	c, err := svc.Create(ctx, ports.CreateCharacterInput{
		OwnerID:  "u1",
		Name:     "  Ava  ",
		Age:      24,
		ArtStyle: "Anime",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == "" || c.Name != "Ava" || c.ArtStyle != "anime" || c.CreatedAt.IsZero() {
		t.Fatalf("unexpected character: %+v", c)
	}

	got, err := svc.Get(ctx, "u1", c.ID)
	if err != nil || got.Name != "Ava" {
		t.Fatalf("get: %v %+v", err, got)
	}
	if _, err := svc.Get(ctx, "u2", c.ID); !errors.Is(err, domain.ErrCharacterNotFound) {
		t.Fatalf("characters are owner scoped, got %v", err)
	}
}

func TestCharacterService_Create_Validation(t *testing.T) {
	svc := NewCharacterService(&memCharacters{db: newMemDB()}, zerolog.Nop())

	tests := []struct {
		name string
		in   ports.CreateCharacterInput
		want error
	}{
		{"anonymous", ports.CreateCharacterInput{Name: "Ava", ArtStyle: "anime"}, domain.ErrUnauthorized},
		{"missing name", ports.CreateCharacterInput{OwnerID: "u1", ArtStyle: "anime"}, domain.ErrInvalidRequest},
		{"missing style", ports.CreateCharacterInput{OwnerID: "u1", Name: "Ava"}, domain.ErrInvalidRequest},
		{"unknown style", ports.CreateCharacterInput{OwnerID: "u1", Name: "Ava", ArtStyle: "pixel"}, domain.ErrInvalidRequest},
		{"age out of range", ports.CreateCharacterInput{OwnerID: "u1", Name: "Ava", ArtStyle: "anime", Age: 121}, domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCharacterService_Delete_KeepsGenerations(t *testing.T) {
	h := newHarness(t, CoordinatorOptions{})
	h.db.addUser("u1", 5, domain.TierFree)
	svc := NewCharacterService(&memCharacters{db: h.db}, zerolog.Nop())
	ctx := context.Background()

	c, err := svc.Create(ctx, ports.CreateCharacterInput{OwnerID: "u1", Name: "Ava", ArtStyle: "anime"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	in := imageInput()
	in.CharacterID = c.ID
	res, err := h.coord.Submit(ctx, "u1", in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.Delete(ctx, "u2", c.ID); !errors.Is(err, domain.ErrCharacterNotFound) {
		t.Fatalf("only the owner may delete, got %v", err)
	}
	if err := svc.Delete(ctx, "u1", c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := svc.List(ctx, "u1")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected no characters, got %v %d", err, len(list))
	}

	view, err := h.coord.Get(ctx, "u1", res.GenerationID)
	if err != nil {
		t.Fatalf("generation should survive its character: %v", err)
	}
	if view.Generation.CharacterID != c.ID || view.Character != nil {
		t.Fatalf("expected a dangling character reference, got %+v", view)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

const (
	defaultDimension      = 1024
	maxDimension          = 4096
	defaultStyle          = "realistic"
	defaultMotionStrength = 5
	minMotionStrength     = 1
	maxMotionStrength     = 10
)

// CostTable is the credit price of each generation type, set from configuration.
type CostTable struct {
	Image int64
	Video int64
}

// Cost returns the price of t.
func (c CostTable) Cost(t domain.GenerationType) int64 {
	if t == domain.GenerationVideo {
		return c.Video
	}
	return c.Image
}

// ValidatedRequest is a generation request that passed shape checks and
// carries its cost.
type ValidatedRequest struct {
	Type           domain.GenerationType
	Prompt         string
	Style          string
	SourceImageURL string
	Character      *domain.Character
	Width          int
	Height         int
	MotionStrength int
	Cost           int64
}

// RequestValidator checks request shape and resolves the optional character.
type RequestValidator struct {
	costs      CostTable
	characters ports.CharacterRepository
}

func NewRequestValidator(costs CostTable, characters ports.CharacterRepository) *RequestValidator {
	return &RequestValidator{costs: costs, characters: characters}
}

// Validate returns a cost-annotated request, or an error wrapping
// domain.ErrInvalidRequest or domain.ErrUnknownCharacter.
func (v *RequestValidator) Validate(ctx context.Context, userID string, in ports.GenerateInput) (*ValidatedRequest, error) {
	t := domain.GenerationType(strings.ToLower(strings.TrimSpace(in.Type)))
	if !t.Valid() {
		return nil, fmt.Errorf("%w: type must be one of: image video", domain.ErrInvalidRequest)
	}

	req := &ValidatedRequest{Type: t, Cost: v.costs.Cost(t)}

	var err error
	switch t {
	case domain.GenerationImage:
		err = v.validateImage(in, req)
	case domain.GenerationVideo:
		err = v.validateVideo(in, req)
	}
	if err != nil {
		return nil, err
	}

	if id := strings.TrimSpace(in.CharacterID); id != "" {
		character, err := v.characters.FindByID(ctx, id, userID)
		if err != nil {
			if errors.Is(err, domain.ErrCharacterNotFound) {
				return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCharacter, id)
			}
			return nil, fmt.Errorf("resolve character: %w", err)
		}
		req.Character = character
	}
	return req, nil
}

func (v *RequestValidator) validateImage(in ports.GenerateInput, req *ValidatedRequest) error {
	req.Prompt = strings.TrimSpace(in.Prompt)
	if req.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrInvalidRequest)
	}

	req.Style = strings.ToLower(strings.TrimSpace(in.Style))
	if req.Style == "" {
		req.Style = defaultStyle
	}
	if !domain.IsKnownStyle(req.Style) {
		return fmt.Errorf("%w: style must be one of: %s", domain.ErrInvalidRequest, strings.Join(domain.ArtStyles, ", "))
	}

	var err error
	if req.Width, err = dimension("width", in.Width); err != nil {
		return err
	}
	if req.Height, err = dimension("height", in.Height); err != nil {
		return err
	}
	return nil
}

func (v *RequestValidator) validateVideo(in ports.GenerateInput, req *ValidatedRequest) error {
	raw := strings.TrimSpace(in.SourceImageURL)
	if raw == "" {
		return fmt.Errorf("%w: image_url is required", domain.ErrInvalidRequest)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: image_url must be an absolute http(s) url", domain.ErrInvalidRequest)
	}
	req.SourceImageURL = raw

	req.MotionStrength = defaultMotionStrength
	if in.MotionStrength != nil {
		m := *in.MotionStrength
		if m < minMotionStrength || m > maxMotionStrength {
			return fmt.Errorf("%w: motion_strength must be between %d and %d", domain.ErrInvalidRequest, minMotionStrength, maxMotionStrength)
		}
		req.MotionStrength = m
	}

	req.Prompt = strings.TrimSpace(in.Prompt)
	if req.Prompt == "" {
		req.Prompt = "Video from image: " + raw
	}
	return nil
}

func dimension(name string, v *int) (int, error) {
	if v == nil {
		return defaultDimension, nil
	}
	if *v <= 0 {
		return 0, fmt.Errorf("%w: %s must be greater than 0", domain.ErrInvalidRequest, name)
	}
	if *v > maxDimension {
		return 0, fmt.Errorf("%w: %s must be at most %d", domain.ErrInvalidRequest, name, maxDimension)
	}
	return *v, nil
}

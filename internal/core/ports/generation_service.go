package ports

import (
	"context"
	"time"

	"github.com/influencerlab/studio/internal/core/domain"
)

// GenerateInput is the raw generation request passed from the transport layer.
type GenerateInput struct {
	Type           string
	Prompt         string
	Style          string
	CharacterID    string
	Width          *int // nil = default
	Height         *int // nil = default
	SourceImageURL string
	MotionStrength *int // nil = default
	IdempotencyKey string
}

// GenerateResult is returned to the caller of Submit.
type GenerateResult struct {
	GenerationID   string
	Status         domain.GenerationStatus
	ResultURL      string
	CreditsCharged int64
	Balance        int64
	// Replayed is true when the Idempotency-Key matched an earlier request.
	Replayed bool
}

// BackendOutcome is a later report about a dispatched job, from polling or a
// backend callback.
type BackendOutcome struct {
	GenerationID string
	JobHandle    string
	Status       domain.GenerationStatus
	ResultURL    string
	Reason       string
	ReceivedAt   time.Time
}

// TrackedJob is a processing job the poller keeps asking the backend about.
type TrackedJob struct {
	GenerationID string
	JobHandle    string
	Deadline     time.Time
}

// JobTracker accepts processing jobs for polling.
type JobTracker interface {
	Track(job TrackedJob)
}

// GenerationView is the read model of a generation for the presentation layer.
type GenerationView struct {
	Generation *domain.Generation
	// Character is nil when no character was referenced or it no longer exists.
	Character *domain.Character
}

// ListGenerationsResult is one page of generation views.
type ListGenerationsResult struct {
	Items      []GenerationView
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// Dashboard summarises a user's account.
type Dashboard struct {
	Balance     int64
	Tier        domain.Tier
	Characters  int64
	Generations int64
	Recent      []GenerationView
}

// GenerationService is the credit transaction coordinator plus its read side.
type GenerationService interface {
	Submit(ctx context.Context, userID string, input GenerateInput) (*GenerateResult, error)
	Finalize(ctx context.Context, outcome BackendOutcome) error
	Get(ctx context.Context, userID, generationID string) (*GenerationView, error)
	List(ctx context.Context, filter GenerationFilter) (*ListGenerationsResult, error)
	Dashboard(ctx context.Context, userID string) (*Dashboard, error)
}

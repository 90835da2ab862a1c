package ports

import (
	"context"

	"github.com/influencerlab/studio/internal/core/domain"
)

// BackendRequest is the validated payload handed to the media backend.
type BackendRequest struct {
	GenerationID   string
	Type           domain.GenerationType
	Prompt         string
	Style          string
	SourceImageURL string
	Character      *domain.Character // nil when no character was referenced
	Width          int
	Height         int
	MotionStrength int
	Watermark      bool
}

// BackendResult is the backend's answer: either a terminal completion with a
// locator, or an in-progress job handle to poll.
type BackendResult struct {
	Status    domain.GenerationStatus // StatusCompleted or StatusProcessing
	ResultURL string
	JobHandle string
}

// MediaBackend is the asynchronous media generation collaborator. Failures are
// reported as errors wrapping domain.ErrBackend.
type MediaBackend interface {
	Invoke(ctx context.Context, req BackendRequest) (*BackendResult, error)
	Poll(ctx context.Context, jobHandle string) (*BackendResult, error)
}

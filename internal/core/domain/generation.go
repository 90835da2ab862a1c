package domain

import (
	"fmt"
	"time"
)

// GenerationType is the kind of media requested.
type GenerationType string

const (
	GenerationImage GenerationType = "image"
	GenerationVideo GenerationType = "video"
)

// Valid reports whether t is a supported generation type.
func (t GenerationType) Valid() bool {
	return t == GenerationImage || t == GenerationVideo
}

// GenerationStatus represents the lifecycle state of a generation.
type GenerationStatus string

const (
	StatusPending    GenerationStatus = "pending"
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
)

// validTransitions defines the allowed state machine transitions.
var validTransitions = map[GenerationStatus][]GenerationStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s GenerationStatus) CanTransitionTo(next GenerationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s GenerationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s GenerationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Generation is one request/response unit of AI-produced media.
// CreditsCharged is fixed at creation; CharacterID is a weak reference and
// may dangle once the character is deleted.
type Generation struct {
	ID             string           `json:"id" bson:"_id"`
	UserID         string           `json:"user_id" bson:"user_id"`
	Type           GenerationType   `json:"type" bson:"type"`
	Prompt         string           `json:"prompt" bson:"prompt"`
	Style          string           `json:"style,omitempty" bson:"style,omitempty"`
	SourceImageURL string           `json:"source_image_url,omitempty" bson:"source_image_url,omitempty"`
	CharacterID    string           `json:"character_id,omitempty" bson:"character_id,omitempty"`
	CreditsCharged int64            `json:"credits_charged" bson:"credits_charged"`
	Status         GenerationStatus `json:"status" bson:"status"`
	ResultURL      string           `json:"result_url,omitempty" bson:"result_url,omitempty"`
	Watermarked    bool             `json:"watermarked" bson:"watermarked"`
	JobHandle      string           `json:"-" bson:"job_handle,omitempty"`
	FailureReason  string           `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	Refunded       bool             `json:"refunded,omitempty" bson:"refunded"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" bson:"updated_at"`
}

// StatusUpdate is a requested status change on a generation.
type StatusUpdate struct {
	Status        GenerationStatus
	ResultURL     string
	JobHandle     string
	FailureReason string
}

// Apply moves g to u.Status. It returns changed=false without error when u
// repeats the state g is already in (same terminal result, or a repeated
// in-progress report), and ErrInvalidTransition when the state machine does
// not allow the move.
func (g *Generation) Apply(u StatusUpdate, at time.Time) (changed bool, err error) {
	if u.Status == g.Status {
		if u.Status == StatusCompleted && u.ResultURL != g.ResultURL {
			return false, fmt.Errorf("%w: generation %s already completed with a different result", ErrInvalidTransition, g.ID)
		}
		return false, nil
	}
	if !g.Status.CanTransitionTo(u.Status) {
		return false, fmt.Errorf("%w (from %s to %s)", ErrInvalidTransition, g.Status, u.Status)
	}
	if u.Status == StatusCompleted && u.ResultURL == "" {
		return false, fmt.Errorf("%w: completed generation requires a result url", ErrInvalidTransition)
	}

	g.Status = u.Status
	if u.ResultURL != "" {
		g.ResultURL = u.ResultURL
	}
	if u.JobHandle != "" {
		g.JobHandle = u.JobHandle
	}
	if u.FailureReason != "" {
		g.FailureReason = u.FailureReason
	}
	g.UpdatedAt = at
	return true, nil
}

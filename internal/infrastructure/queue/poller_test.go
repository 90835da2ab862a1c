package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

type fakeBackend struct {
	results map[string]*ports.BackendResult
	err     error
	polls   int
}

func (b *fakeBackend) Invoke(context.Context, ports.BackendRequest) (*ports.BackendResult, error) {
	return nil, errors.New("not used")
}

func (b *fakeBackend) Poll(_ context.Context, handle string) (*ports.BackendResult, error) {
	b.polls++
	if b.err != nil {
		return nil, b.err
	}
	return b.results[handle], nil
}

type sliceSink struct {
	outcomes []ports.BackendOutcome
}

func (s *sliceSink) Enqueue(o ports.BackendOutcome) { s.outcomes = append(s.outcomes, o) }

func TestPoller_PollOnce(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("completed job is reported and untracked", func(t *testing.T) {
		backend := &fakeBackend{results: map[string]*ports.BackendResult{
			"job-1": {Status: domain.StatusCompleted, ResultURL: "https://cdn.example.com/job-1.mp4"},
		}}
		p := NewPoller(backend, time.Second, zerolog.Nop())
		p.now = func() time.Time { return now }
		p.Track(ports.TrackedJob{GenerationID: "g1", JobHandle: "job-1", Deadline: now.Add(time.Minute)})

		sink := &sliceSink{}
		p.PollOnce(context.Background(), sink)

		if len(sink.outcomes) != 1 {
			t.Fatalf("expected 1 outcome, got %d", len(sink.outcomes))
		}
		if sink.outcomes[0].Status != domain.StatusCompleted || sink.outcomes[0].ResultURL == "" {
			t.Fatalf("unexpected outcome: %+v", sink.outcomes[0])
		}
		if p.Len() != 0 {
			t.Fatalf("expected job to be untracked, %d left", p.Len())
		}
	})

	t.Run("processing job stays tracked", func(t *testing.T) {
		backend := &fakeBackend{results: map[string]*ports.BackendResult{
			"job-2": {Status: domain.StatusProcessing, JobHandle: "job-2"},
		}}
		p := NewPoller(backend, time.Second, zerolog.Nop())
		p.now = func() time.Time { return now }
		p.Track(ports.TrackedJob{GenerationID: "g2", JobHandle: "job-2", Deadline: now.Add(time.Minute)})

		sink := &sliceSink{}
		p.PollOnce(context.Background(), sink)

		if len(sink.outcomes) != 0 {
			t.Fatalf("expected no outcome, got %+v", sink.outcomes)
		}
		if p.Len() != 1 {
			t.Fatalf("expected job to stay tracked")
		}
	})

	t.Run("deadline exceeded fails the job without polling", func(t *testing.T) {
		backend := &fakeBackend{}
		p := NewPoller(backend, time.Second, zerolog.Nop())
		p.now = func() time.Time { return now }
		p.Track(ports.TrackedJob{GenerationID: "g3", JobHandle: "job-3", Deadline: now.Add(-time.Second)})

		sink := &sliceSink{}
		p.PollOnce(context.Background(), sink)

		if backend.polls != 0 {
			t.Fatalf("expected no poll after deadline, got %d", backend.polls)
		}
		if len(sink.outcomes) != 1 || sink.outcomes[0].Status != domain.StatusFailed {
			t.Fatalf("expected failed outcome, got %+v", sink.outcomes)
		}
		if p.Len() != 0 {
			t.Fatalf("expected job to be untracked")
		}
	})

	t.Run("poll error keeps the job for the next tick", func(t *testing.T) {
		backend := &fakeBackend{err: errors.New("unavailable")}
		p := NewPoller(backend, time.Second, zerolog.Nop())
		p.now = func() time.Time { return now }
		p.Track(ports.TrackedJob{GenerationID: "g4", JobHandle: "job-4", Deadline: now.Add(time.Minute)})

		sink := &sliceSink{}
		p.PollOnce(context.Background(), sink)

		if len(sink.outcomes) != 0 || p.Len() != 1 {
			t.Fatalf("expected job to remain tracked with no outcome")
		}
	})
}

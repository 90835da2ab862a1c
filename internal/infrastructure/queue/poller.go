package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/api/metrics"
	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

const defaultPollInterval = 2 * time.Second

// OutcomeSink receives outcomes discovered by the poller.
type OutcomeSink interface {
	Enqueue(o ports.BackendOutcome)
}

// Poller asks the media backend about processing jobs until they finish or
// their deadline passes. A job past its deadline is reported as failed.
type Poller struct {
	backend  ports.MediaBackend
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu   sync.Mutex
	jobs map[string]ports.TrackedJob
}

func NewPoller(backend ports.MediaBackend, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		backend:  backend,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		jobs:     make(map[string]ports.TrackedJob),
	}
}

// Track adds or replaces a job.
func (p *Poller) Track(job ports.TrackedJob) {
	p.mu.Lock()
	p.jobs[job.GenerationID] = job
	metrics.TrackedJobs.Set(float64(len(p.jobs)))
	p.mu.Unlock()
}

// Len returns the number of tracked jobs.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Start polls every interval until ctx is cancelled.
func (p *Poller) Start(ctx context.Context, sink OutcomeSink) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.PollOnce(ctx, sink)
			}
		}
	}()
}

// PollOnce checks every tracked job once.
func (p *Poller) PollOnce(ctx context.Context, sink OutcomeSink) {
	p.mu.Lock()
	jobs := make([]ports.TrackedJob, 0, len(p.jobs))
	for _, j := range p.jobs {
		jobs = append(jobs, j)
	}
	p.mu.Unlock()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		now := p.now()
		if now.After(job.Deadline) {
			p.untrack(job.GenerationID)
			p.log.Warn().Str("generation_id", job.GenerationID).Msg("backend job deadline exceeded")
			sink.Enqueue(ports.BackendOutcome{
				GenerationID: job.GenerationID,
				JobHandle:    job.JobHandle,
				Status:       domain.StatusFailed,
				Reason:       domain.ErrBackendTimeout.Error(),
				ReceivedAt:   now,
			})
			continue
		}

		res, err := p.backend.Poll(ctx, job.JobHandle)
		if err != nil {
			// Retried on the next tick; the deadline bounds how long.
			p.log.Warn().Err(err).Str("generation_id", job.GenerationID).Msg("backend poll failed")
			continue
		}

		switch res.Status {
		case domain.StatusCompleted, domain.StatusFailed:
			p.untrack(job.GenerationID)
			sink.Enqueue(ports.BackendOutcome{
				GenerationID: job.GenerationID,
				JobHandle:    job.JobHandle,
				Status:       res.Status,
				ResultURL:    res.ResultURL,
				ReceivedAt:   now,
			})
		}
	}
}

func (p *Poller) untrack(generationID string) {
	p.mu.Lock()
	delete(p.jobs, generationID)
	metrics.TrackedJobs.Set(float64(len(p.jobs)))
	p.mu.Unlock()
}

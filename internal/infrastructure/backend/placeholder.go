// Package backend provides the media generation backend used until a real
// provider is wired in.
package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

const (
	imageBaseURL        = "https://picsum.photos/seed"
	defaultVideoLatency = 30 * time.Second
)

// Config tunes the placeholder backend.
type Config struct {
	VideoBaseURL string
	VideoLatency time.Duration
}

// Placeholder completes images immediately with a deterministic picsum URL
// and runs videos as jobs that finish after VideoLatency.
type Placeholder struct {
	cfg Config
	now func() time.Time

	mu   sync.Mutex
	jobs map[string]time.Time // job handle -> ready at
}

func NewPlaceholder(cfg Config) *Placeholder {
	if cfg.VideoLatency <= 0 {
		cfg.VideoLatency = defaultVideoLatency
	}
	cfg.VideoBaseURL = strings.TrimRight(cfg.VideoBaseURL, "/")
	return &Placeholder{
		cfg:  cfg,
		now:  time.Now,
		jobs: make(map[string]time.Time),
	}
}

func (p *Placeholder) Invoke(ctx context.Context, req ports.BackendRequest) (*ports.BackendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Type {
	case domain.GenerationImage:
		return &ports.BackendResult{
			Status:    domain.StatusCompleted,
			ResultURL: fmt.Sprintf("%s/%d/%d/%d", imageBaseURL, p.now().UnixMilli(), req.Width, req.Height),
		}, nil
	case domain.GenerationVideo:
		handle := uuid.NewString()
		p.mu.Lock()
		p.jobs[handle] = p.now().Add(p.cfg.VideoLatency)
		p.mu.Unlock()
		return &ports.BackendResult{Status: domain.StatusProcessing, JobHandle: handle}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", domain.ErrBackend, req.Type)
	}
}

func (p *Placeholder) Poll(ctx context.Context, jobHandle string) (*ports.BackendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	readyAt, ok := p.jobs[jobHandle]
	if ok && !p.now().Before(readyAt) {
		delete(p.jobs, jobHandle)
	}
	p.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown job %s", domain.ErrBackend, jobHandle)
	}
	if p.now().Before(readyAt) {
		return &ports.BackendResult{Status: domain.StatusProcessing, JobHandle: jobHandle}, nil
	}
	return &ports.BackendResult{
		Status:    domain.StatusCompleted,
		ResultURL: fmt.Sprintf("%s/%s.mp4", p.cfg.VideoBaseURL, jobHandle),
		JobHandle: jobHandle,
	}, nil
}

package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

type recordingFinalizer struct {
	mu   sync.Mutex
	seen map[string][]domain.GenerationStatus
	wg   sync.WaitGroup
}

func (f *recordingFinalizer) Finalize(_ context.Context, o ports.BackendOutcome) error {
	defer f.wg.Done()
	f.mu.Lock()
	f.seen[o.GenerationID] = append(f.seen[o.GenerationID], o.Status)
	f.mu.Unlock()
	return nil
}

func TestDispatcher_PreservesPerGenerationOrder(t *testing.T) {
	f := &recordingFinalizer{seen: make(map[string][]domain.GenerationStatus)}
	d := NewDispatcher(4, f, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	const gens = 20
	f.wg.Add(gens * 2)
	for i := 0; i < gens; i++ {
		id := fmt.Sprintf("gen-%d", i)
		d.Enqueue(ports.BackendOutcome{GenerationID: id, Status: domain.StatusProcessing})
		d.Enqueue(ports.BackendOutcome{GenerationID: id, Status: domain.StatusCompleted})
	}

	done := make(chan struct{})
	go func() { f.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcomes")
	}

	for i := 0; i < gens; i++ {
		got := f.seen[fmt.Sprintf("gen-%d", i)]
		if len(got) != 2 || got[0] != domain.StatusProcessing || got[1] != domain.StatusCompleted {
			t.Fatalf("gen-%d: outcomes out of order: %v", i, got)
		}
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(0, nil, zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("expected %d workers, got %d", defaultWorkers, len(d.workers))
	}
	a := d.shardIndex("gen-42")
	for i := 0; i < 10; i++ {
		if d.shardIndex("gen-42") != a {
			t.Fatal("shard index changed between calls")
		}
	}
	if a < 0 || a >= defaultWorkers {
		t.Fatalf("shard index %d out of range", a)
	}
}

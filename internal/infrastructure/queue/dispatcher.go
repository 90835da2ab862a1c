package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/api/metrics"
	"github.com/influencerlab/studio/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Finalizer applies a backend outcome to its generation.
type Finalizer interface {
	Finalize(ctx context.Context, outcome ports.BackendOutcome) error
}

// Dispatcher routes backend outcomes to a fixed set of workers using consistent
// hashing on the generation id, guaranteeing per-generation ordering.
type Dispatcher struct {
	workers   []chan ports.BackendOutcome
	finalizer Finalizer
	log       zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, finalizer Finalizer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan ports.BackendOutcome, numWorkers),
		finalizer: finalizer,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.BackendOutcome, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an outcome to the worker responsible for its generation.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(o ports.BackendOutcome) {
	idx := d.shardIndex(o.GenerationID)
	metrics.OutcomesQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	d.workers[idx] <- o
}

// shardIndex maps a generation id deterministically to a worker index.
func (d *Dispatcher) shardIndex(generationID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(generationID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.BackendOutcome) {
	depth := metrics.OutcomesQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			if err := d.finalizer.Finalize(ctx, o); err != nil {
				d.log.Error().Err(err).
					Str("generation_id", o.GenerationID).
					Str("status", string(o.Status)).
					Int("worker_id", id).
					Msg("outcome processing failed")
			}
		}
	}
}

package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Every runs fn immediately and then every interval until ctx is cancelled.
// Errors are logged and do not stop the schedule.
func Every(ctx context.Context, interval time.Duration, name string, log zerolog.Logger, fn func(context.Context) error) {
	run := func() {
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
		}
	}

	go func() {
		run()
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}

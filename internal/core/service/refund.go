package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/api/metrics"
	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

const (
	defaultRefundAttempts = 5
	defaultRefundBackoff  = 200 * time.Millisecond
)

// Refunder books compensating refunds for failed generations. A refund is a
// single unit inside the user's ledger scope: the generation's refunded flag
// and the +credits transaction are written together, so repeating it never
// refunds twice.
type Refunder struct {
	ledger      ports.LedgerRepository
	maxAttempts int
	backoff     time.Duration
	log         zerolog.Logger
}

// NewRefunder returns a Refunder. Non-positive options fall back to defaults.
func NewRefunder(ledger ports.LedgerRepository, maxAttempts int, backoff time.Duration, log zerolog.Logger) *Refunder {
	if maxAttempts <= 0 {
		maxAttempts = defaultRefundAttempts
	}
	if backoff <= 0 {
		backoff = defaultRefundBackoff
	}
	return &Refunder{ledger: ledger, maxAttempts: maxAttempts, backoff: backoff, log: log}
}

// Refund returns the credits charged for gen. Transient failures are retried
// with exponential backoff; once attempts run out the refund is escalated and
// an error wrapping domain.ErrRefundFailed is returned. The record stays
// failed-and-unrefunded so the reconciler picks it up again.
func (r *Refunder) Refund(ctx context.Context, gen *domain.Generation) error {
	if gen.CreditsCharged <= 0 {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		booked, err := r.refundOnce(ctx, gen)
		if err == nil {
			if booked {
				metrics.CreditsRefundedTotal.Add(float64(gen.CreditsCharged))
				r.log.Info().
					Str("generation_id", gen.ID).
					Str("user_id", gen.UserID).
					Int64("credits", gen.CreditsCharged).
					Msg("refund booked")
			}
			return nil
		}
		lastErr = err

		// An unknown user cannot be fixed by retrying.
		if errors.Is(err, domain.ErrUserNotFound) {
			break
		}

		metrics.RefundRetriesTotal.Inc()
		r.log.Warn().Err(err).
			Str("generation_id", gen.ID).
			Int("attempt", attempt).
			Msg("refund attempt failed")

		if attempt == r.maxAttempts {
			break
		}
		if err := sleep(ctx, r.backoff<<(attempt-1)); err != nil {
			lastErr = err
			break
		}
	}

	r.escalate(gen, lastErr)
	return fmt.Errorf("%w: generation %s: %v", domain.ErrRefundFailed, gen.ID, lastErr)
}

func (r *Refunder) refundOnce(ctx context.Context, gen *domain.Generation) (bool, error) {
	booked := false
	err := r.ledger.WithinUserScope(ctx, gen.UserID, func(ctx context.Context, tx ports.LedgerTx) error {
		booked = false
		first, err := tx.MarkRefunded(ctx, gen.ID)
		if err != nil {
			return fmt.Errorf("mark refunded: %w", err)
		}
		if !first {
			return nil
		}
		if _, err := tx.Adjust(ctx, gen.CreditsCharged, domain.TransactionMeta{
			Type:         domain.TxRefund,
			Description:  fmt.Sprintf("Refund for failed %s generation", gen.Type),
			GenerationID: gen.ID,
		}); err != nil {
			return fmt.Errorf("credit refund: %w", err)
		}
		booked = true
		return nil
	})
	return booked, err
}

func (r *Refunder) escalate(gen *domain.Generation, cause error) {
	metrics.RefundEscalationsTotal.Inc()
	r.log.Error().
		Err(cause).
		Bool("operator_alert", true).
		Str("generation_id", gen.ID).
		Str("user_id", gen.UserID).
		Int64("credits", gen.CreditsCharged).
		Msg("refund retries exhausted, manual follow-up required")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

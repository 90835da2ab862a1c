package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/api/metrics"
	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	recentLimit      = 6

	defaultBackendTimeout = 30 * time.Second
	defaultJobTimeout     = 10 * time.Minute
	defaultPendingTimeout = 5 * time.Minute
)

// IdempotencyStore abstracts the Idempotency-Key store (Redis).
type IdempotencyStore interface {
	// Reserve claims key for userID. When the key was already used it returns
	// reserved=false and the generation id bound to it, or "" while the first
	// request is still running.
	Reserve(ctx context.Context, userID, key string) (generationID string, reserved bool, err error)
	Complete(ctx context.Context, userID, key, generationID string) error
	Release(ctx context.Context, userID, key string) error
}

// CoordinatorOptions tunes the asynchronous part of the coordinator.
type CoordinatorOptions struct {
	// BackendTimeout bounds a single Invoke call.
	BackendTimeout time.Duration
	// JobTimeout bounds how long a processing job may stay unresolved.
	JobTimeout time.Duration
	// PendingTimeout is how old a pending record must be before the
	// reconciler treats its dispatch as lost.
	PendingTimeout time.Duration
}

// CoordinatorDeps groups the collaborators of the coordinator.
type CoordinatorDeps struct {
	Validator   *RequestValidator
	Ledger      ports.LedgerRepository
	Generations ports.GenerationRepository
	Characters  ports.CharacterRepository
	Users       ports.UserRepository
	Backend     ports.MediaBackend
	Tracker     ports.JobTracker
	Idempotency IdempotencyStore // optional
	Refunder    *Refunder
}

// Coordinator is the credit transaction coordinator: it ties validation,
// the per-user debit, the generation record, the backend call and the final
// status (with a compensating refund on failure) together.
type Coordinator struct {
	CoordinatorDeps
	opts  CoordinatorOptions
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// NewCoordinator returns a Coordinator. Zero options fall back to defaults.
func NewCoordinator(deps CoordinatorDeps, opts CoordinatorOptions, log zerolog.Logger) *Coordinator {
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = defaultBackendTimeout
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = defaultPendingTimeout
	}
	return &Coordinator{
		CoordinatorDeps: deps,
		opts:            opts,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
	}
}

// Submit validates the request, debits the user inside their exclusive
// scope, records the generation and invokes the backend outside the scope.
//
// Rejections (invalid request, unknown character, insufficient credits,
// frozen ledger) return an error and leave no trace. Once the debit is
// committed Submit never fails: backend errors surface as a failed status
// with the credits refunded.
func (c *Coordinator) Submit(ctx context.Context, userID string, in ports.GenerateInput) (*ports.GenerateResult, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	start := time.Now()

	req, err := c.Validator.Validate(ctx, userID, in)
	if err != nil {
		metrics.GenerationsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	if in.IdempotencyKey != "" {
		replay, err := c.reserveKey(ctx, userID, in.IdempotencyKey)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	gen, balance, err := c.debit(ctx, userID, req)
	if err != nil {
		metrics.GenerationsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		c.releaseKey(ctx, userID, in.IdempotencyKey)
		return nil, err
	}
	metrics.GenerationsSubmittedTotal.WithLabelValues(string(req.Type)).Inc()
	metrics.CreditsDebitedTotal.Add(float64(req.Cost))

	if in.IdempotencyKey != "" && c.Idempotency != nil {
		if err := c.Idempotency.Complete(ctx, userID, in.IdempotencyKey, gen.ID); err != nil {
			c.log.Warn().Err(err).Str("generation_id", gen.ID).Msg("failed to bind idempotency key")
		}
	}

	c.log.Info().
		Str("generation_id", gen.ID).
		Str("user_id", userID).
		Str("type", string(gen.Type)).
		Int64("cost", req.Cost).
		Int64("balance", balance).
		Msg("generation debited")

	// The debit is the system of record: post-debit work runs to a terminal
	// state even if the caller disconnects.
	gen = c.dispatch(context.WithoutCancel(ctx), gen, req)
	if gen.Status == domain.StatusFailed {
		if b, err := c.Ledger.Balance(ctx, userID); err == nil {
			balance = b
		}
	}

	metrics.SubmitDuration.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())

	return &ports.GenerateResult{
		GenerationID:   gen.ID,
		Status:         gen.Status,
		ResultURL:      gen.ResultURL,
		CreditsCharged: gen.CreditsCharged,
		Balance:        balance,
	}, nil
}

// debit runs steps 1–5: balance check, debit, transaction row and pending
// generation record, all in one exclusive scope.
func (c *Coordinator) debit(ctx context.Context, userID string, req *ValidatedRequest) (*domain.Generation, int64, error) {
	now := c.now()
	gen := &domain.Generation{
		ID:             c.newID(),
		UserID:         userID,
		Type:           req.Type,
		Prompt:         req.Prompt,
		Style:          req.Style,
		SourceImageURL: req.SourceImageURL,
		CreditsCharged: req.Cost,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Character != nil {
		gen.CharacterID = req.Character.ID
	}

	var balance int64
	err := c.Ledger.WithinUserScope(ctx, userID, func(ctx context.Context, tx ports.LedgerTx) error {
		acct, err := tx.Account(ctx)
		if err != nil {
			return err
		}
		if acct.Frozen {
			return fmt.Errorf("%w: account %s is frozen pending review", domain.ErrLedgerInconsistency, userID)
		}
		if acct.Balance < req.Cost {
			return fmt.Errorf("%w: balance %d, cost %d", domain.ErrInsufficientFunds, acct.Balance, req.Cost)
		}

		res, err := tx.Adjust(ctx, -req.Cost, domain.TransactionMeta{
			Type:         domain.TxGeneration,
			Description:  description(req.Type),
			GenerationID: gen.ID,
		})
		if err != nil {
			return err
		}
		balance = res.NewBalance
		gen.Watermarked = acct.Tier.Watermarked()

		return tx.CreateGeneration(ctx, gen)
	})
	if err != nil {
		return nil, 0, err
	}
	return gen, balance, nil
}

// dispatch runs steps 6–8: invoke the backend and record what it said.
func (c *Coordinator) dispatch(ctx context.Context, gen *domain.Generation, req *ValidatedRequest) *domain.Generation {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.BackendTimeout)
	start := time.Now()
	res, err := c.Backend.Invoke(callCtx, backendRequest(gen, req))
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		outcome := "error"
		if timedOut {
			outcome = "timeout"
			err = fmt.Errorf("%w: %v", domain.ErrBackendTimeout, err)
		}
		metrics.BackendInvokeDuration.WithLabelValues(string(gen.Type), outcome).Observe(time.Since(start).Seconds())
		c.log.Warn().Err(err).Str("generation_id", gen.ID).Msg("backend invocation failed")
		return c.fail(ctx, gen, err.Error())
	}
	metrics.BackendInvokeDuration.WithLabelValues(string(gen.Type), string(res.Status)).Observe(time.Since(start).Seconds())

	switch res.Status {
	case domain.StatusCompleted:
		return c.complete(ctx, gen, res.ResultURL)
	case domain.StatusProcessing:
		updated, err := c.Generations.UpdateStatus(ctx, gen.ID, domain.StatusUpdate{
			Status:    domain.StatusProcessing,
			JobHandle: res.JobHandle,
		})
		if err != nil {
			c.log.Error().Err(err).Str("generation_id", gen.ID).Msg("failed to mark generation processing")
			return gen
		}
		c.Tracker.Track(ports.TrackedJob{
			GenerationID: gen.ID,
			JobHandle:    res.JobHandle,
			Deadline:     c.now().Add(c.opts.JobTimeout),
		})
		return updated
	default:
		return c.fail(ctx, gen, fmt.Sprintf("backend returned unexpected status %q", res.Status))
	}
}

// Finalize applies a later backend outcome to a generation.
func (c *Coordinator) Finalize(ctx context.Context, o ports.BackendOutcome) error {
	gen, err := c.Generations.FindByID(ctx, o.GenerationID)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if o.JobHandle != "" && gen.JobHandle != "" && o.JobHandle != gen.JobHandle {
		return fmt.Errorf("finalize: %w: job handle does not match generation %s", domain.ErrInvalidRequest, gen.ID)
	}

	switch o.Status {
	case domain.StatusProcessing:
		if gen.Status == domain.StatusPending {
			_, err := c.Generations.UpdateStatus(ctx, gen.ID, domain.StatusUpdate{Status: domain.StatusProcessing, JobHandle: o.JobHandle})
			return err
		}
		return nil
	case domain.StatusCompleted:
		if _, err := c.Generations.UpdateStatus(ctx, gen.ID, domain.StatusUpdate{Status: domain.StatusCompleted, ResultURL: o.ResultURL}); err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
		if !gen.Status.IsTerminal() {
			metrics.GenerationsFinalizedTotal.WithLabelValues(string(gen.Type), string(domain.StatusCompleted)).Inc()
		}
		return nil
	case domain.StatusFailed:
		if gen.Status == domain.StatusCompleted {
			return fmt.Errorf("finalize: %w (from %s to %s)", domain.ErrInvalidTransition, gen.Status, o.Status)
		}
		reason := o.Reason
		if reason == "" {
			reason = "backend reported failure"
		}
		c.fail(ctx, gen, reason)
		return nil
	default:
		return fmt.Errorf("finalize: %w: unsupported status %q", domain.ErrInvalidRequest, o.Status)
	}
}

func (c *Coordinator) complete(ctx context.Context, gen *domain.Generation, resultURL string) *domain.Generation {
	updated, err := c.Generations.UpdateStatus(ctx, gen.ID, domain.StatusUpdate{
		Status:    domain.StatusCompleted,
		ResultURL: resultURL,
	})
	if err != nil {
		// Left pending; the reconciler fails and refunds it once stale.
		c.log.Error().Err(err).Str("generation_id", gen.ID).Msg("failed to mark generation completed")
		return gen
	}
	metrics.GenerationsFinalizedTotal.WithLabelValues(string(gen.Type), string(domain.StatusCompleted)).Inc()
	c.log.Info().Str("generation_id", gen.ID).Msg("generation completed")
	return updated
}

// fail marks gen failed and books the compensating refund.
func (c *Coordinator) fail(ctx context.Context, gen *domain.Generation, reason string) *domain.Generation {
	updated, err := c.Generations.UpdateStatus(ctx, gen.ID, domain.StatusUpdate{
		Status:        domain.StatusFailed,
		FailureReason: reason,
	})
	if err != nil {
		c.log.Error().Err(err).Str("generation_id", gen.ID).Msg("failed to mark generation failed")
		return gen
	}
	if gen.Status != domain.StatusFailed {
		metrics.GenerationsFinalizedTotal.WithLabelValues(string(gen.Type), string(domain.StatusFailed)).Inc()
	}
	c.log.Info().Str("generation_id", gen.ID).Str("reason", reason).Msg("generation failed")

	if err := c.Refunder.Refund(ctx, updated); err != nil {
		// Escalated by the refunder; the reconciler retries it.
		return updated
	}
	updated.Refunded = true
	return updated
}

// Reconcile repairs work interrupted by a restart or exhausted retries:
// processing jobs are tracked again, stale pending records are failed and
// refunded, and failed records missing their refund are refunded.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	now := c.now()

	processing, err := c.Generations.ListByStatus(ctx, domain.StatusProcessing, now)
	if err != nil {
		return fmt.Errorf("reconcile: list processing: %w", err)
	}
	for _, g := range processing {
		if g.JobHandle == "" {
			c.fail(ctx, g, "processing without a job handle")
			continue
		}
		c.Tracker.Track(ports.TrackedJob{
			GenerationID: g.ID,
			JobHandle:    g.JobHandle,
			Deadline:     g.UpdatedAt.Add(c.opts.JobTimeout),
		})
	}

	pending, err := c.Generations.ListByStatus(ctx, domain.StatusPending, now.Add(-c.opts.PendingTimeout))
	if err != nil {
		return fmt.Errorf("reconcile: list pending: %w", err)
	}
	for _, g := range pending {
		c.fail(ctx, g, "dispatch interrupted")
	}

	unrefunded, err := c.Generations.ListUnrefundedFailures(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list unrefunded: %w", err)
	}
	var refundErrs []error
	for _, g := range unrefunded {
		if err := c.Refunder.Refund(ctx, g); err != nil {
			refundErrs = append(refundErrs, err)
		}
	}

	c.log.Info().
		Int("processing", len(processing)).
		Int("stale_pending", len(pending)).
		Int("unrefunded", len(unrefunded)).
		Msg("reconcile finished")

	return errors.Join(refundErrs...)
}

// Get returns one of the user's generations.
func (c *Coordinator) Get(ctx context.Context, userID, generationID string) (*ports.GenerationView, error) {
	gen, err := c.Generations.FindByID(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if gen.UserID != userID {
		return nil, domain.ErrGenerationNotFound
	}

	view := &ports.GenerationView{Generation: gen}
	if gen.CharacterID != "" {
		character, err := c.Characters.FindByID(ctx, gen.CharacterID, userID)
		if err == nil {
			view.Character = character
		} else if !errors.Is(err, domain.ErrCharacterNotFound) {
			return nil, err
		}
	}
	return view, nil
}

// List returns one page of the user's generations, newest first.
func (c *Coordinator) List(ctx context.Context, filter ports.GenerationFilter) (*ports.ListGenerationsResult, error) {
	if filter.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidRequest, filter.Type)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, filter.Status)
	}
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	gens, total, err := c.Generations.ListByUser(ctx, filter)
	if err != nil {
		return nil, err
	}
	views, err := c.views(ctx, gens)
	if err != nil {
		return nil, err
	}

	return &ports.ListGenerationsResult{
		Items:      views,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// Dashboard summarises the user's account from live ledger state.
func (c *Coordinator) Dashboard(ctx context.Context, userID string) (*ports.Dashboard, error) {
	user, err := c.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := c.Ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	characters, err := c.Characters.CountByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, total, err := c.Generations.ListByUser(ctx, ports.GenerationFilter{UserID: userID, Page: 1, Limit: recentLimit})
	if err != nil {
		return nil, err
	}
	views, err := c.views(ctx, recent)
	if err != nil {
		return nil, err
	}

	return &ports.Dashboard{
		Balance:     balance,
		Tier:        user.Tier,
		Characters:  characters,
		Generations: total,
		Recent:      views,
	}, nil
}

// views joins generations with their characters. Deleted characters are
// simply left unresolved.
func (c *Coordinator) views(ctx context.Context, gens []*domain.Generation) ([]ports.GenerationView, error) {
	ids := make([]string, 0, len(gens))
	for _, g := range gens {
		if g.CharacterID != "" {
			ids = append(ids, g.CharacterID)
		}
	}

	var byID map[string]*domain.Character
	if len(ids) > 0 {
		var err error
		if byID, err = c.Characters.FindByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}

	views := make([]ports.GenerationView, len(gens))
	for i, g := range gens {
		views[i] = ports.GenerationView{Generation: g}
		if ch, ok := byID[g.CharacterID]; ok && ch.OwnerID == g.UserID {
			views[i].Character = ch
		}
	}
	return views, nil
}

func (c *Coordinator) reserveKey(ctx context.Context, userID, key string) (*ports.GenerateResult, error) {
	if c.Idempotency == nil {
		return nil, nil
	}
	genID, reserved, err := c.Idempotency.Reserve(ctx, userID, key)
	if err != nil {
		metrics.IdempotencyTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("user_id", userID).Msg("idempotency check failed, processing anyway")
		return nil, nil
	}
	if reserved {
		metrics.IdempotencyTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}
	metrics.IdempotencyTotal.WithLabelValues("hit").Inc()
	if genID == "" {
		return nil, domain.ErrRequestInFlight
	}

	gen, err := c.Generations.FindByID(ctx, genID)
	if err != nil {
		return nil, fmt.Errorf("idempotent replay: %w", err)
	}
	balance, err := c.Ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("idempotency_key", key).Str("generation_id", gen.ID).Msg("idempotent replay")
	return &ports.GenerateResult{
		GenerationID:   gen.ID,
		Status:         gen.Status,
		ResultURL:      gen.ResultURL,
		CreditsCharged: gen.CreditsCharged,
		Balance:        balance,
		Replayed:       true,
	}, nil
}

func (c *Coordinator) releaseKey(ctx context.Context, userID, key string) {
	if key == "" || c.Idempotency == nil {
		return
	}
	if err := c.Idempotency.Release(ctx, userID, key); err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("failed to release idempotency key")
	}
}

func backendRequest(gen *domain.Generation, req *ValidatedRequest) ports.BackendRequest {
	return ports.BackendRequest{
		GenerationID:   gen.ID,
		Type:           gen.Type,
		Prompt:         gen.Prompt,
		Style:          gen.Style,
		SourceImageURL: gen.SourceImageURL,
		Character:      req.Character,
		Width:          req.Width,
		Height:         req.Height,
		MotionStrength: req.MotionStrength,
		Watermark:      gen.Watermarked,
	}
}

func description(t domain.GenerationType) string {
	if t == domain.GenerationVideo {
		return "Video generation"
	}
	return "Image generation"
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrUnknownCharacter):
		return "unknown_character"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrLedgerInconsistency):
		return "ledger_frozen"
	default:
		return "error"
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

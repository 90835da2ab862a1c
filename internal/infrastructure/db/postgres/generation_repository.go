package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

const generationColumns = `id, user_id, type, prompt, style, source_image_url, character_id, credits_charged, ` +
	`status, result_url, watermarked, job_handle, failure_reason, refunded, created_at, updated_at`

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) FindByID(ctx context.Context, id string) (*domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	g, err := scanGeneration(r.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGenerationNotFound
		}
		return nil, fmt.Errorf("find generation: %w", err)
	}
	return g, nil
}

// UpdateStatus locks the row, applies the transition and writes it back in
// one transaction.
func (r *GenerationRepository) UpdateStatus(ctx context.Context, id string, u domain.StatusUpdate) (*domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	g, err := scanGeneration(tx.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGenerationNotFound
		}
		return nil, fmt.Errorf("lock generation: %w", err)
	}

	changed, err := g.Apply(u, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !changed {
		return g, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE generations
		SET status = $1, result_url = $2, job_handle = $3, failure_reason = $4, updated_at = $5
		WHERE id = $6`,
		string(g.Status), g.ResultURL, g.JobHandle, g.FailureReason, g.UpdatedAt, g.ID)
	if err != nil {
		return nil, fmt.Errorf("update generation status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

func (r *GenerationRepository) ListByUser(ctx context.Context, f ports.GenerationFilter) ([]*domain.Generation, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where, args := listWhere(f)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count generations: %w", err)
	}

	n := len(args)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM generations WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		generationColumns, where, n+1, n+2)

	gens, err := r.query(ctx, query, args...)
	return gens, total, err
}

func (r *GenerationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generations WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *GenerationRepository) ListByStatus(ctx context.Context, status domain.GenerationStatus, olderThan time.Time) ([]*domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.query(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE status = $1 AND updated_at < $2 ORDER BY updated_at`,
		string(status), olderThan)
}

func (r *GenerationRepository) ListUnrefundedFailures(ctx context.Context) ([]*domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.query(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE status = $1 AND NOT refunded AND credits_charged > 0`,
		string(domain.StatusFailed))
}

func (r *GenerationRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Generation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	gens := []*domain.Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// listWhere builds the WHERE clause and positional args for ListByUser.
func listWhere(f ports.GenerationFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{f.UserID}
	if f.Type != "" {
		args = append(args, string(f.Type))
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanGeneration(row scanner) (*domain.Generation, error) {
	var (
		g           domain.Generation
		typ, status string
	)
	err := row.Scan(&g.ID, &g.UserID, &typ, &g.Prompt, &g.Style, &g.SourceImageURL, &g.CharacterID,
		&g.CreditsCharged, &status, &g.ResultURL, &g.Watermarked, &g.JobHandle, &g.FailureReason,
		&g.Refunded, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Type = domain.GenerationType(typ)
	g.Status = domain.GenerationStatus(status)
	return &g, nil
}

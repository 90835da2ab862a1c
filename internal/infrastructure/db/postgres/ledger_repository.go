package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// LedgerRepository implements ports.LedgerRepository with row locks on the
// users table.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithinUserScope opens a transaction and locks the user row with
// SELECT ... FOR UPDATE before running fn. A second scope for the same user
// blocks on the lock until the first one commits or rolls back.
func (r *LedgerRepository) WithinUserScope(ctx context.Context, userID string, fn func(context.Context, ports.LedgerTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger scope: %w", err)
	}
	defer sqlTx.Rollback()

	tx := &ledgerTx{tx: sqlTx, userID: userID}
	if err := tx.lock(ctx); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit ledger scope: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Balance(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var credits int64
	err := r.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return credits, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, userID string, page, limit int) ([]*domain.CreditTransaction, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, description, generation_id, balance_after, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := []*domain.CreditTransaction{}
	for rows.Next() {
		var (
			t   domain.CreditTransaction
			typ string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &typ, &t.Description, &t.GenerationID, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(typ)
		items = append(items, &t)
	}
	return items, total, rows.Err()
}

func (r *LedgerRepository) Freeze(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE users SET frozen = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("freeze user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type ledgerTx struct {
	tx      *sql.Tx
	userID  string
	account domain.Account
}

func (t *ledgerTx) lock(ctx context.Context) error {
	var tier string
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, credits, tier, frozen FROM users WHERE id = $1 FOR UPDATE`, t.userID,
	).Scan(&t.account.UserID, &t.account.Balance, &tier, &t.account.Frozen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	t.account.Tier = domain.Tier(tier)
	return nil
}

func (t *ledgerTx) Account(context.Context) (*domain.Account, error) {
	acct := t.account
	return &acct, nil
}

func (t *ledgerTx) Adjust(ctx context.Context, delta int64, meta domain.TransactionMeta) (*domain.AdjustResult, error) {
	now := time.Now().UTC()

	var balance int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE users SET credits = credits + $1, updated_at = $2
		WHERE id = $3 AND credits + $1 >= 0
		RETURNING credits`,
		delta, now, t.userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: balance %d, debit %d", domain.ErrInsufficientFunds, t.account.Balance, -delta)
		}
		return nil, fmt.Errorf("adjust balance: %w", err)
	}

	id := uuid.NewString()
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, generation_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, t.userID, delta, string(meta.Type), meta.Description, meta.GenerationID, balance, now)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	t.account.Balance = balance
	return &domain.AdjustResult{NewBalance: balance, TransactionID: id}, nil
}

func (t *ledgerTx) CreateGeneration(ctx context.Context, g *domain.Generation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO generations (`+generationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		g.ID, g.UserID, string(g.Type), g.Prompt, g.Style, g.SourceImageURL, g.CharacterID,
		g.CreditsCharged, string(g.Status), g.ResultURL, g.Watermarked, g.JobHandle,
		g.FailureReason, g.Refunded, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

func (t *ledgerTx) SumTransactions(ctx context.Context) (int64, error) {
	var sum int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`, t.userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

func (t *ledgerTx) MarkRefunded(ctx context.Context, generationID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE generations SET refunded = TRUE WHERE id = $1 AND user_id = $2 AND NOT refunded`,
		generationID, t.userID)
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	var one int
	err = t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM generations WHERE id = $1 AND user_id = $2`, generationID, t.userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrGenerationNotFound
	}
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}
	return false, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/api/metrics"
	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// LedgerService exposes balances, the transaction log, operator grants and
// the balance/log integrity check.
type LedgerService struct {
	ledger ports.LedgerRepository
	log    zerolog.Logger
}

func NewLedgerService(ledger ports.LedgerRepository, log zerolog.Logger) *LedgerService {
	return &LedgerService{ledger: ledger, log: log}
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrUnauthorized
	}
	return s.ledger.Balance(ctx, userID)
}

func (s *LedgerService) Transactions(ctx context.Context, userID string, page, limit int) (*ports.TransactionPage, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	page, limit = normalizePage(page, limit)
	items, total, err := s.ledger.ListTransactions(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	return &ports.TransactionPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Grant applies an operator-initiated credit movement. Grants must be
// positive; adjustments may go either way but never below zero.
func (s *LedgerService) Grant(ctx context.Context, in ports.GrantInput) (*domain.AdjustResult, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	if in.Type == "" {
		in.Type = domain.TxGrant
	}
	switch in.Type {
	case domain.TxGrant:
		if in.Amount <= 0 {
			return nil, fmt.Errorf("%w: grant amount must be positive", domain.ErrInvalidRequest)
		}
	case domain.TxAdjustment:
		if in.Amount == 0 {
			return nil, fmt.Errorf("%w: adjustment amount must not be zero", domain.ErrInvalidRequest)
		}
	default:
		return nil, fmt.Errorf("%w: type must be grant or adjustment", domain.ErrInvalidRequest)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = "Credit " + string(in.Type)
	}

	var res *domain.AdjustResult
	err := s.ledger.WithinUserScope(ctx, in.UserID, func(ctx context.Context, tx ports.LedgerTx) error {
		var err error
		res, err = tx.Adjust(ctx, in.Amount, domain.TransactionMeta{Type: in.Type, Description: desc})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", in.UserID).
		Str("type", string(in.Type)).
		Int64("amount", in.Amount).
		Int64("balance", res.NewBalance).
		Msg("credits adjusted")
	return res, nil
}

// Verify compares the stored balance with the sum of the user's transactions.
// On mismatch the account is frozen, an operator alert is logged and an error
// wrapping domain.ErrLedgerInconsistency is returned along with the report.
func (s *LedgerService) Verify(ctx context.Context, userID string) (*ports.LedgerReport, error) {
	report := &ports.LedgerReport{UserID: userID}
	err := s.ledger.WithinUserScope(ctx, userID, func(ctx context.Context, tx ports.LedgerTx) error {
		acct, err := tx.Account(ctx)
		if err != nil {
			return err
		}
		sum, err := tx.SumTransactions(ctx)
		if err != nil {
			return err
		}
		report.Balance = acct.Balance
		report.TransactionsTotal = sum
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Consistent = report.Balance == report.TransactionsTotal
	if report.Consistent {
		return report, nil
	}

	metrics.LedgerInconsistenciesTotal.Inc()
	s.log.Error().
		Bool("operator_alert", true).
		Str("user_id", userID).
		Int64("balance", report.Balance).
		Int64("transactions_total", report.TransactionsTotal).
		Msg("ledger inconsistency detected, freezing account")

	if err := s.ledger.Freeze(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to freeze account")
	}
	return report, fmt.Errorf("%w: user %s balance %d, transactions total %d",
		domain.ErrLedgerInconsistency, userID, report.Balance, report.TransactionsTotal)
}

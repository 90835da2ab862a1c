package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/core/domain"
)

func failedGeneration(db *memDB, id string, credits int64) *domain.Generation {
	g := &domain.Generation{ID: id, UserID: "u1", Type: domain.GenerationVideo, CreditsCharged: credits, Status: domain.StatusFailed}
	db.putGeneration(g)
	return g
}

func TestRefunder_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("books once", func(t *testing.T) {
		db := newMemDB()
		db.addUser("u1", 0, domain.TierFree)
		r := NewRefunder(&memLedger{db: db}, 3, time.Millisecond, zerolog.Nop())
		g := failedGeneration(db, "g1", 20)

		for i := 0; i < 3; i++ {
			if err := r.Refund(ctx, g); err != nil {
				t.Fatalf("refund #%d: %v", i+1, err)
			}
		}
		refunds := db.transactions("u1", domain.TxRefund)
		if len(refunds) != 1 || refunds[0].Amount != 20 || refunds[0].Description != "Refund for failed video generation" {
			t.Fatalf("expected a single refund row, got %+v", refunds)
		}
		if db.balance("u1") != 20 || !db.generation("g1").Refunded {
			t.Fatal("refund not applied")
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		db := newMemDB()
		db.addUser("u1", 0, domain.TierFree)
		db.markRefundFailures = 2
		r := NewRefunder(&memLedger{db: db}, 3, time.Millisecond, zerolog.Nop())

		if err := r.Refund(ctx, failedGeneration(db, "g1", 5)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if db.balance("u1") != 5 {
			t.Fatalf("expected balance 5, got %d", db.balance("u1"))
		}
	})

	t.Run("escalates when retries run out", func(t *testing.T) {
		db := newMemDB()
		db.addUser("u1", 0, domain.TierFree)
		db.markRefundFailures = 10
		r := NewRefunder(&memLedger{db: db}, 3, time.Millisecond, zerolog.Nop())

		err := r.Refund(ctx, failedGeneration(db, "g1", 5))
		if !errors.Is(err, domain.ErrRefundFailed) {
			t.Fatalf("expected ErrRefundFailed, got %v", err)
		}
		if db.markRefundFailures != 7 {
			t.Fatalf("expected 3 attempts, got %d", 10-db.markRefundFailures)
		}
		if db.balance("u1") != 0 || db.generation("g1").Refunded {
			t.Fatal("a failed refund must leave no partial state")
		}
	})

	t.Run("unknown user is not retried", func(t *testing.T) {
		db := newMemDB()
		r := NewRefunder(&memLedger{db: db}, 3, time.Millisecond, zerolog.Nop())
		before := db.scopes

		err := r.Refund(ctx, &domain.Generation{ID: "g1", UserID: "ghost", CreditsCharged: 5})
		if !errors.Is(err, domain.ErrRefundFailed) {
			t.Fatalf("expected ErrRefundFailed, got %v", err)
		}
		if db.scopes-before != 1 {
			t.Fatalf("expected a single attempt, got %d", db.scopes-before)
		}
	})

	t.Run("free generation needs no refund", func(t *testing.T) {
		db := newMemDB()
		r := NewRefunder(&memLedger{db: db}, 3, time.Millisecond, zerolog.Nop())
		if err := r.Refund(ctx, &domain.Generation{ID: "g1", UserID: "u1"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if db.scopes != 0 {
			t.Fatal("no ledger scope should be opened")
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		db := newMemDB()
		db.addUser("u1", 0, domain.TierFree)
		db.markRefundFailures = 10
		r := NewRefunder(&memLedger{db: db}, 5, time.Hour, zerolog.Nop())

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := r.Refund(cctx, failedGeneration(db, "g1", 5))
		if !errors.Is(err, domain.ErrRefundFailed) {
			t.Fatalf("expected ErrRefundFailed, got %v", err)
		}
	})
}

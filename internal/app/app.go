// Package app wires configuration, storage, services and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/influencerlab/studio/internal/api"
	"github.com/influencerlab/studio/internal/core/ports"
	"github.com/influencerlab/studio/internal/core/service"
	"github.com/influencerlab/studio/internal/infrastructure/backend"
	"github.com/influencerlab/studio/internal/infrastructure/config"
	"github.com/influencerlab/studio/internal/infrastructure/db/mongo"
	"github.com/influencerlab/studio/internal/infrastructure/db/postgres"
	"github.com/influencerlab/studio/internal/infrastructure/db/redis"
	"github.com/influencerlab/studio/internal/infrastructure/http/handlers"
	"github.com/influencerlab/studio/internal/infrastructure/queue"
	"github.com/influencerlab/studio/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// Stores is the set of repositories backed by the configured driver.
type Stores struct {
	Users       ports.UserRepository
	Ledger      ports.LedgerRepository
	Generations ports.GenerationRepository
	Characters  ports.CharacterRepository
	Checks      map[string]handlers.Check

	close func(context.Context) error
}

// Close releases the underlying connections.
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStores connects to the driver selected by STORE_DRIVER.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:       postgres.NewUserRepository(db),
			Ledger:      postgres.NewLedgerRepository(db),
			Generations: postgres.NewGenerationRepository(db),
			Characters:  postgres.NewCharacterRepository(db),
			Checks:      map[string]handlers.Check{"postgres": handlers.PostgresCheck(db)},
			close:       func(context.Context) error { return db.Close() },
		}, nil

	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:       mongo.NewUserRepository(db),
			Ledger:      mongo.NewLedgerRepository(client, db),
			Generations: mongo.NewGenerationRepository(db),
			Characters:  mongo.NewCharacterRepository(db),
			Checks:      map[string]handlers.Check{"mongodb": handlers.MongoCheck(db)},
			close:       client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Migrate creates the schema (Postgres) or the indexes (MongoDB).
func Migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return err
		}
		defer db.Close()
		return postgres.Migrate(ctx, db)
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		return mongo.EnsureIndexes(ctx, db)
	}
	return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// VerifyLedger checks one user's ledger from the command line. An
// inconsistent ledger is frozen.
func VerifyLedger(ctx context.Context, cfg *config.Config, userID string) (*ports.LedgerReport, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer stores.Close(context.Background())

	return service.NewLedgerService(stores.Ledger, logger.Component("ledger")).Verify(ctx, userID)
}

// Run starts the background workers and the HTTP server and blocks until ctx
// is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	var idempotency service.IdempotencyStore
	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, Idempotency-Key headers are ignored")
	} else {
		defer rdb.Close()
		idempotency = redis.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		stores.Checks["redis"] = handlers.RedisCheck(rdb)
	}

	media := backend.NewPlaceholder(backend.Config{
		VideoBaseURL: cfg.Backend.VideoBaseURL,
		VideoLatency: cfg.Backend.VideoLatency,
	})

	ledgerService := service.NewLedgerService(stores.Ledger, logger.Component("ledger"))
	poller := queue.NewPoller(media, cfg.Backend.PollInterval, logger.Component("poller"))
	coordinator := service.NewCoordinator(service.CoordinatorDeps{
		Validator: service.NewRequestValidator(service.CostTable{
			Image: cfg.Credits.ImageCost,
			Video: cfg.Credits.VideoCost,
		}, stores.Characters),
		Ledger:      stores.Ledger,
		Generations: stores.Generations,
		Characters:  stores.Characters,
		Users:       stores.Users,
		Backend:     media,
		Tracker:     poller,
		Idempotency: idempotency,
		Refunder: service.NewRefunder(stores.Ledger, cfg.Refund.MaxAttempts, cfg.Refund.Backoff,
			logger.Component("refund")),
	}, service.CoordinatorOptions{
		BackendTimeout: cfg.Backend.Timeout,
		JobTimeout:     cfg.Backend.JobTimeout,
		PendingTimeout: cfg.Backend.PendingTimeout,
	}, logger.Component("coordinator"))

	dispatcher := queue.NewDispatcher(cfg.Workers, coordinator, logger.Component("dispatcher"))
	dispatcher.Start(ctx)
	poller.Start(ctx, dispatcher)
	queue.Every(ctx, cfg.Refund.ReconcileInterval, "reconcile", logger.Component("reconciler"), coordinator.Reconcile)

	e := api.NewRouter(api.Deps{
		Auth: service.NewAuthService(stores.Users, ledgerService, service.AuthOptions{
			JWTSecret:   cfg.JWTSecret,
			SignupGrant: cfg.Credits.SignupGrant,
			AdminEmails: cfg.AdminEmails,
		}, logger.Component("auth")),
		Generations:   coordinator,
		Characters:    service.NewCharacterService(stores.Characters, logger.Component("characters")),
		Ledger:        ledgerService,
		Outcomes:      dispatcher,
		Checks:        stores.Checks,
		JWTSecret:     cfg.JWTSecret,
		CallbackToken: cfg.Backend.CallbackToken,
		Log:           log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

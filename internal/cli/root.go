// Package cli holds the studio command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/influencerlab/studio/internal/infrastructure/config"
	"github.com/influencerlab/studio/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "AI influencer studio: credit ledger and generation accounting",
	Long: `studio runs the generation API and its background workers, and offers
operator commands for schema migration and ledger verification.

Settings come from the environment (and an optional .env file).`,
	SilenceUsage: true,
}

// Execute runs the command tree until the process receives SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration and initialises the logger.
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "studio",
	})
	return cfg, nil
}

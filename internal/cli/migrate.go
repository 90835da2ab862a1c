package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/influencerlab/studio/internal/app"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema (postgres) or indexes (mongo) for STORE_DRIVER",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		if err := app.Migrate(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", cfg.StoreDriver)
		return nil
	},
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/influencerlab/studio/internal/app"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the job poller and the refund reconciler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		return app.Run(cmd.Context(), cfg)
	},
}

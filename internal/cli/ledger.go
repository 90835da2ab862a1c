package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/influencerlab/studio/internal/app"
	"github.com/influencerlab/studio/internal/core/domain"
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)

	ledgerVerifyCmd.Flags().StringP("user", "u", "", "User ID to verify")
	_ = ledgerVerifyCmd.MarkFlagRequired("user")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect credit ledgers",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that a user's balance equals the sum of their transactions",
	Long: `Compare a user's stored balance with the sum of their credit transactions.
A mismatch freezes the account: further debits are refused until an
operator has reviewed the ledger.`,
	RunE: runLedgerVerify,
}

func runLedgerVerify(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")

	cfg, err := setup(cmd.Context())
	if err != nil {
		return err
	}

	report, err := app.VerifyLedger(cmd.Context(), cfg, userID)
	if err != nil && !(report != nil && errors.Is(err, domain.ErrLedgerInconsistency)) {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user:               %s\n", report.UserID)
	fmt.Fprintf(out, "balance:            %d\n", report.Balance)
	fmt.Fprintf(out, "transactions total: %d\n", report.TransactionsTotal)
	if !report.Consistent {
		fmt.Fprintln(out, "status:             INCONSISTENT (account frozen)")
		return err
	}
	fmt.Fprintln(out, "status:             ok")
	return nil
}

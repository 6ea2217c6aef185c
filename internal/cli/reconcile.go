package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"grill-backend/internal/database"
	"grill-backend/internal/inventory"
	"grill-backend/internal/recipe"
	"grill-backend/internal/reconcile"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("date", "", "UTC day to reconcile (YYYY-MM-DD), default yesterday")
	reconcileCmd.Flags().String("from", "", "window start, RFC3339")
	reconcileCmd.Flags().String("to", "", "window end, RFC3339")
	reconcileCmd.MarkFlagsMutuallyExclusive("date", "from")
	reconcileCmd.MarkFlagsMutuallyExclusive("date", "to")
	reconcileCmd.MarkFlagsRequiredTogether("from", "to")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile completed Square orders against the ledger",
	Long: `Search Square for COMPLETED orders closed in the window and write RECON
entries where the ledger disagrees with the recipes. With no flags the
previous UTC day is reconciled. The report is printed as JSON.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	date, _ := cmd.Flags().GetString("date")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	start, end, err := reconcile.TriggerRequest{Date: date, Start: from, End: to}.Window(time.Now())
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close(db)

	ledger := inventory.NewLedgerStore(db, log)
	calc := inventory.NewCalculator(recipe.NewStore(db), log)
	svc := reconcile.NewService(squareClient(), calc, ledger, log)

	report, err := svc.ReconcileRange(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

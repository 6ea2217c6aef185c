package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"grill-backend/internal/catalog"
	"grill-backend/internal/database"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogSyncCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Work with the local copy of the Square catalog",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull item variations from Square",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		n, err := catalog.NewSyncer(db, squareClient(), log).Sync(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d variations\n", n)
		return nil
	},
}

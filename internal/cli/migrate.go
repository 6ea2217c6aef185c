package cli

import (
	"github.com/spf13/cobra"

	"grill-backend/internal/database"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		return database.Close(db)
	},
}

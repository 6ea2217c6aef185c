package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/config"
	"grill-backend/internal/database"
	"grill-backend/internal/logger"
	"grill-backend/internal/square"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "grill",
	Short: "Grill back-office: Square sales to inventory ledger",
	Long: `grill keeps the inventory ledger in step with Square sales.
Payment and refund webhooks deplete or restore stock through per-variation
recipes, and a nightly job reconciles the previous UTC day against Square.`,
	SilenceUsage:      true,
	PersistentPreRunE: bootstrap,
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg = c

	l, err := logger.New(cfg.Logger, cfg.IsDevelopment())
	if err != nil {
		return err
	}
	log = l.With(zap.String("cmd", cmd.Name()))

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}
	return nil
}

func openDB() (*gorm.DB, error) {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, log); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

func squareClient() *square.Client {
	return square.NewClient(cfg.Square, log)
}

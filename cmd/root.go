package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/config"
	"github.com/PlayersCouncil/game-analytics/internal/db"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "game-analytics",
	Short: "Card correlation and archetype detection pipeline",
	Long:  "Computes pairwise card correlations from match history, clusters cards into archetype communities, and manages the community membership lifecycle.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// dbPool connects to the configured database and pings it.
func dbPool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("no database_url configured (set store.database_url or GEMP_STORE_DATABASE_URL)")
	}
	return db.Connect(ctx, cfg.Store.DatabaseURL)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

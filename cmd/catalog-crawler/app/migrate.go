package app

import (
	"context"
	"fmt"

	"github.com/Sternrassler/ozon-catalog-crawler/internal/config"
	"github.com/Sternrassler/ozon-catalog-crawler/internal/store"
	"github.com/Sternrassler/ozon-catalog-crawler/pkg/logging"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the crawler tables",
		Long: `Create the seller_credentials, crawl_category, category, cat_list and
attr_param_list tables if they do not exist. Use --down to drop them.`,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("down", false, "Drop the crawler tables instead")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	down, err := cmd.Flags().GetBool("down")
	if err != nil {
		return fmt.Errorf("failed to get down flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)
	logger := logging.NewLogger("migrate")

	s, err := store.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns, logging.NewLogger("store"))
	if err != nil {
		return err
	}
	defer s.Close()

	if down {
		if err := s.MigrateDown(ctx); err != nil {
			return err
		}
		logger.Info().Msg("Crawler tables dropped")
		return nil
	}
	return s.MigrateUp(ctx)
}

func setupLogging(cfg *config.Config) {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Setup(logging.Config{Level: level, Pretty: cfg.Log.Pretty})
}

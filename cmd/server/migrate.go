package main

import (
	"context"
	"fmt"

	"checkout-service/config"
	"checkout-service/internal/store"
	"checkout-service/internal/util"
	"checkout-service/migrations"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [orders|payments]",
		Short:     "Apply database migrations for a service",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrations.Sets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), args[0])
		},
	}
}

func runMigrate(ctx context.Context, set string) error {
	cfg := config.Load(set)
	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel, set); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.SyncLogger()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	files, err := migrations.Files(set)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, set); err != nil {
		return err
	}
	util.GetLogger().Info("Migrations applied", zap.String("set", set), zap.Int("files", len(files)))
	return nil
}

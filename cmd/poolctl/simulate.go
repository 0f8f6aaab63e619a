package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/sim"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal := storage.NewJsonlJournal(cfg.Journal)

	var store sim.SnapshotStore
	if cfg.PgDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		store = pgStore
	}

	runner := sim.NewRunner(sim.RunConfig{
		RunID:              cfg.RunID,
		Seed:               cfg.Seed,
		Steps:              cfg.Steps,
		FeePips:            cfg.FeePips,
		TickSpacing:        cfg.TickSpacing,
		ProtocolFeeRatePpm: cfg.ProtocolFeeRate,
		RewardRatePerSec:   cfg.RewardRate,
		SnapshotEvery:      cfg.SnapshotEvery,
	}, journal, store, logger)

	logger.Info("simulation start",
		zap.String("run_id", cfg.RunID),
		zap.Int64("seed", cfg.Seed),
		zap.Int("steps", cfg.Steps),
		zap.Uint32("fee_pips", cfg.FeePips),
		zap.Int32("tick_spacing", cfg.TickSpacing),
		zap.String("journal", cfg.Journal),
		zap.Bool("postgres", store != nil),
	)

	return runner.Run(ctx)
}

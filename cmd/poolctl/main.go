package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Concentrated-liquidity pool engine tools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a randomized operation sequence against a pool",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("run-id", "local", "identifier for this run")
	simulateCmd.Flags().Int64("seed", 1, "random seed")
	simulateCmd.Flags().Int("steps", 1000, "number of operations to execute")
	simulateCmd.Flags().Uint32("fee-pips", 3000, "swap fee in parts per million")
	simulateCmd.Flags().Int32("tick-spacing", 60, "tick spacing")
	simulateCmd.Flags().Uint32("protocol-fee-rate", 0, "protocol fee rate in parts per million")
	simulateCmd.Flags().Uint64("reward-rate", 0, "reward emission per simulated second")
	simulateCmd.Flags().String("journal", "./data/journal.jsonl", "operation journal JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshots (optional)")
	simulateCmd.Flags().Int("snapshot-every", 100, "steps between stored snapshots")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap against a single-position pool",
		RunE:  runQuote,
	}

	quoteCmd.Flags().Uint32("fee-pips", 3000, "swap fee in parts per million")
	quoteCmd.Flags().Int32("tick-spacing", 60, "tick spacing")
	quoteCmd.Flags().String("liquidity", "1000000000000000000", "position liquidity")
	quoteCmd.Flags().Int32("tick-lower", -600, "position lower tick")
	quoteCmd.Flags().Int32("tick-upper", 600, "position upper tick")
	quoteCmd.Flags().String("amount", "1000000", "input amount (negative for exact output)")
	quoteCmd.Flags().Bool("zero-for-one", true, "swap token0 for token1")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

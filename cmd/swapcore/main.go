package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swapcore/internal/config"
	"swapcore/internal/router"
	"swapcore/internal/sim"
	"swapcore/internal/storage"
	"swapcore/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "swapcore",
		Short:        "Constant-product AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a deterministic trading session against in-memory pools",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().Int("tokens", 3, "number of tokens")
	simulateCmd.Flags().Int("traders", 2, "number of traders")
	simulateCmd.Flags().Int("swaps", 50, "number of swaps to attempt")
	simulateCmd.Flags().Int64("seed", 1, "random seed")
	simulateCmd.Flags().String("initial-mint", "1000000000000", "tokens minted per holder")
	simulateCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the event sink")
	simulateCmd.Flags().String("fee-recipient", "", "optional protocol fee recipient (hex address)")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a constant-product swap for given reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("amount-in", "", "fixed input amount")
	quoteCmd.Flags().String("amount-out", "", "fixed output amount")
	quoteCmd.Flags().String("reserve-in", "", "input-side reserve")
	quoteCmd.Flags().String("reserve-out", "", "output-side reserve")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

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

	initialMint, ok := new(big.Int).SetString(cfg.InitialMint, 10)
	if !ok {
		return fmt.Errorf("invalid initial-mint %q", cfg.InitialMint)
	}

	var feeRecipient common.Address
	if cfg.FeeRecipient != "" {
		if !common.IsHexAddress(cfg.FeeRecipient) {
			return fmt.Errorf("invalid fee-recipient %q", cfg.FeeRecipient)
		}
		feeRecipient = common.HexToAddress(cfg.FeeRecipient)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := sim.NewRunner(sim.RunConfig{
		Tokens:       cfg.Tokens,
		Traders:      cfg.Traders,
		Swaps:        cfg.Swaps,
		Seed:         cfg.Seed,
		InitialMint:  initialMint,
		FeeRecipient: feeRecipient,
	}, logger)
	if err != nil {
		return err
	}

	sinks := []storage.Sink{storage.NewJsonlSink(cfg.Out)}
	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, storage.NewRetrySink(store, 3, 200*time.Millisecond))
	}

	logger.Info("simulation start",
		zap.Int("tokens", cfg.Tokens),
		zap.Int("traders", cfg.Traders),
		zap.Int("swaps", cfg.Swaps),
		zap.Int64("seed", cfg.Seed),
		zap.String("out", cfg.Out),
	)

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if err := runner.Collector().Flush(ctx, sinks...); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	if store != nil {
		if err := store.UpsertPairs(ctx, runner.Registry().PairInfos()); err != nil {
			return fmt.Errorf("upsert pairs: %w", err)
		}
	}

	logger.Info("simulation complete",
		zap.Int("pools", summary.Pools),
		zap.Int("swaps_executed", summary.SwapsExecuted),
		zap.Int("swaps_failed", summary.SwapsFailed),
	)
	return nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	reserveIn, err := bigFlag(cmd, "reserve-in")
	if err != nil {
		return err
	}
	reserveOut, err := bigFlag(cmd, "reserve-out")
	if err != nil {
		return err
	}

	amountInStr, _ := cmd.Flags().GetString("amount-in")
	amountOutStr, _ := cmd.Flags().GetString("amount-out")
	switch {
	case amountInStr != "" && amountOutStr != "":
		return fmt.Errorf("set either amount-in or amount-out, not both")
	case amountInStr != "":
		amountIn, err := bigFlag(cmd, "amount-in")
		if err != nil {
			return err
		}
		out, err := router.GetAmountOut(amountIn, reserveIn, reserveOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "amount out: %s\n", out)
	case amountOutStr != "":
		amountOut, err := bigFlag(cmd, "amount-out")
		if err != nil {
			return err
		}
		in, err := router.GetAmountIn(amountOut, reserveIn, reserveOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "amount in: %s\n", in)
	default:
		return fmt.Errorf("amount-in or amount-out is required")
	}
	return nil
}

func bigFlag(cmd *cobra.Command, name string) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
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

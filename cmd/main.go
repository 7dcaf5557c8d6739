// Command rebalancer keeps a crypto portfolio at its target allocation.
// It takes a balance snapshot, plans netted swaps toward the targets and executes them
// on Binance, Bybit or a simulated wallet.
//
// Usage:
//
//	rebalancer --config config.yaml
//	rebalancer --config config.yaml --once --dry-run
//	rebalancer --config config.yaml --setup
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//
// With --once the exit status reports the run: 0 done (or nothing to do), 1 failed before any swap,
// 2 the portfolio was partially rebalanced, 3 the plan was rejected.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/rebalancer/config"
	"github.com/vadiminshakov/rebalancer/internal"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/services/rebalance"
	"github.com/vadiminshakov/rebalancer/internal/setup"
	"github.com/vadiminshakov/rebalancer/internal/web"
)

const (
	exitOK       = 0
	exitFailed   = 1
	exitPartial  = 2
	exitRejected = 3
)

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}

	code := run(logger)
	_ = logger.Sync()
	os.Exit(code)
}

// run returns the process exit status; deferred cleanup completes before main exits.
func run(logger *zap.Logger) int {

	conf, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}
	if conf.Setup {
		if err := setup.Run(conf.Path); err != nil {
			logger.Fatal("setup failed", zap.Error(err))
		}
		once, dryRun := conf.Once, conf.DryRun
		if conf, err = config.Load(conf.Path); err != nil {
			logger.Fatal("failed to load generated configuration", zap.Error(err))
		}
		conf.Once, conf.DryRun = once, dryRun
	}

	client, err := newClient(conf)
	if err != nil {
		logger.Fatal("failed to create exchange client", zap.Error(err))
	}

	r, err := internal.NewRebalancer(conf, client, logger)
	if err != nil {
		logger.Fatal("failed to create rebalancer", zap.Error(err))
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Error("failed to close rebalancer", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Once {
		result, err := r.RunOnce(ctx)
		code := exitCode(result, err)
		if err != nil {
			logger.Error("rebalancing run failed", zap.String("run_id", result.RunID), zap.Int("exit_code", code), zap.Error(err))
			return code
		}
		logger.Info("rebalancing run done", zap.String("run_id", result.RunID), zap.String("outcome", result.Report.Outcome.String()))
		return code
	}

	server := web.NewServer(conf.HTTPAddr, logger, r.Snapshots(), r.Actions(), r.Runs())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(ctx)
	})
	g.Go(func() error {
		return server.Start(ctx)
	})

	logger.Info("started",
		zap.String("platform", conf.Platform),
		zap.String("numeraire", conf.Numeraire),
		zap.Duration("interval", conf.RebalanceInterval),
		zap.String("http", conf.HTTPAddr))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stopped with error", zap.Error(err))
		return exitFailed
	}
	logger.Info("stopped")
	return exitOK
}

// exitCode maps a single run onto the process exit status.
func exitCode(result *internal.RunResult, err error) int {
	if err == nil {
		return exitOK
	}
	switch {
	case errors.Is(err, rebalance.ErrAllocationMismatch),
		errors.Is(err, rebalance.ErrNormalizationAnomaly),
		errors.Is(err, rebalance.ErrInsufficientNumeraire):
		return exitRejected
	}
	// swaps already made cannot be undone, the caller has to know the portfolio moved
	if result != nil && len(result.Report.Completed) > 0 {
		return exitPartial
	}
	return exitFailed
}

func newClient(conf config.Config) (any, error) {
	switch conf.Platform {
	case config.PlatformBinance:
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		return clients.NewBinanceClient(apiKey, apiSecret), nil
	case config.PlatformBybit:
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, errors.New("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		return clients.NewBybitClient(apiKey, apiSecret), nil
	case config.PlatformSimulate:
		return clients.NewSimulateClient(conf.Numeraire), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", conf.Platform)
	}
}

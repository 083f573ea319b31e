package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"tradecore/internal/bootstrap"
	"tradecore/pkg/telemetry"
)

var (
	configFile  = flag.String("config", "configs/tradecore.yaml", "Path to configuration file")
	signalsFile = flag.String("signals", "", "Read JSON signals, one per line, from this file ('-' for stdin)")
)

func main() {
	flag.Parse()

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tradecore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app, err := bootstrap.NewApp(*configFile)
	if err != nil {
		return err
	}
	cfg := app.Cfg
	logger := app.Logger

	tel, err := telemetry.Setup(telemetry.Options{
		ServiceName:  cfg.App.Name,
		StdoutTraces: cfg.Telemetry.StdoutTraces,
		StdoutLogs:   cfg.Telemetry.StdoutLogs,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Telemetry shutdown failed", "error", err)
		}
	}()

	svc, err := bootstrap.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Shutdown cleanup failed", "error", err)
		}
	}()

	restoreCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.Restore(restoreCtx); err != nil {
		logger.Warn("Failed to restore snapshot, starting fresh", "error", err)
	}
	cancel()

	runners := []bootstrap.Runner{svc}
	if *signalsFile != "" {
		r, closeFn, err := openSignals(*signalsFile)
		if err != nil {
			return fmt.Errorf("signal source: %w", err)
		}
		defer closeFn()
		runners = append(runners, bootstrap.NewSignalFeed(r, svc.Trader, cfg.App.Symbol, cfg.App.Timeframe, logger))
	}

	logger.Info("Starting tradecore",
		"venues", cfg.App.ActiveVenues,
		"symbol", cfg.App.Symbol,
		"store", cfg.Store.Type,
		"auto_execute", cfg.Arbitrage.AutoExecute)

	return app.Run(runners...)
}

func openSignals(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

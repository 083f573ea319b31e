package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tradecore/internal/bootstrap"
	"tradecore/internal/classifier"
	"tradecore/internal/config"
	"tradecore/internal/core"
	"tradecore/internal/trading/backtest"
	"tradecore/pkg/concurrency"
)

const topTrials = 5

var (
	configFile   = flag.String("config", "configs/tradecore.yaml", "Path to configuration file")
	mode         = flag.String("mode", "backtest", "backtest or optimize")
	symbolFlag   = flag.String("symbol", "", "Override backtest.symbol")
	timeframe    = flag.String("timeframe", "", "Override backtest.timeframe")
	startFlag    = flag.String("start", "", "Override backtest.start_date (YYYY-MM-DD)")
	endFlag      = flag.String("end", "", "Override backtest.end_date (YYYY-MM-DD)")
	seedFlag     = flag.Uint64("seed", 0, "Override backtest.seed")
	outDir       = flag.String("out", "", "Override backtest.output_dir")
	enforceStops = flag.Bool("enforce-stops", false, "Exit on stop-loss and take-profit between signals")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app, err := bootstrap.NewApp(*configFile)
	if err != nil {
		return err
	}
	bc := applyOverrides(app.Cfg.Backtest)
	if err := validateBacktest(app.Cfg, bc); err != nil {
		return err
	}

	start, end, err := bc.Period()
	if err != nil {
		return err
	}
	bars := backtest.NewPriceGenerator(bc.Seed).Generate(bc.Symbol, bc.Timeframe, start, end)
	app.Logger.Info("Generated price series",
		"symbol", bc.Symbol,
		"timeframe", bc.Timeframe,
		"bars", len(bars),
		"seed", bc.Seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := bootstrap.BacktestConfig(bc)
	switch *mode {
	case "backtest":
		return runBacktest(ctx, app.Logger, base, bars, bc.OutputDir)
	case "optimize":
		return runOptimize(ctx, app, base, bars, bc.OutputDir)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
}

func applyOverrides(bc config.BacktestConfig) config.BacktestConfig {
	if *symbolFlag != "" {
		bc.Symbol = *symbolFlag
	}
	if *timeframe != "" {
		bc.Timeframe = *timeframe
	}
	if *startFlag != "" {
		bc.StartDate = *startFlag
	}
	if *endFlag != "" {
		bc.EndDate = *endFlag
	}
	if *seedFlag != 0 {
		bc.Seed = *seedFlag
	}
	if *outDir != "" {
		bc.OutputDir = *outDir
	}
	if *enforceStops {
		bc.EnforceStops = true
	}
	return bc
}

func validateBacktest(cfg *config.Config, bc config.BacktestConfig) error {
	probe := *cfg
	probe.Backtest = bc
	return probe.Validate()
}

func runBacktest(ctx context.Context, logger core.ILogger, cfg backtest.Config, bars []backtest.Bar, dir string) error {
	res, err := simulate(ctx, logger, cfg, bars)
	if err != nil {
		return err
	}
	return writeOutputs(logger, res, dir, "backtest")
}

func simulate(ctx context.Context, logger core.ILogger, cfg backtest.Config, bars []backtest.Bar) (*backtest.Result, error) {
	engine := backtest.NewEngine(classifier.NewHeuristic(0), logger)
	if err := engine.Initialize(cfg); err != nil {
		return nil, err
	}
	return engine.Run(ctx, bars)
}

func runOptimize(ctx context.Context, app *bootstrap.App, base backtest.Config, bars []backtest.Bar, dir string) error {
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "optimizer",
		MaxWorkers:  app.Cfg.Concurrency.OptimizePoolSize,
		MaxCapacity: 128,
	}, app.Logger)
	defer pool.Stop()

	opt := backtest.NewOptimizer(pool, classifier.NewHeuristic(0), app.Logger)
	grid := backtest.DefaultGrid()
	trials, err := opt.Optimize(ctx, base, bars, grid)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Optimization (%d combinations)\n", len(trials))
	for _, tr := range trials[:min(topTrials, len(trials))] {
		fmt.Fprintf(&b, "%d. %s  sharpe=%.2f pf=%.2f trades=%d profit=%.2f%%\n",
			tr.Rank, tr.Params, tr.Metrics.SharpeRatio, tr.Metrics.ProfitFactor,
			tr.Metrics.TotalTrades, tr.Metrics.TotalProfitPercent)
	}
	fmt.Print(b.String())

	stamp := time.Now().UTC().Format("20060102-150405")
	data, err := json.MarshalIndent(trials, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trials: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	trialsPath := filepath.Join(dir, fmt.Sprintf("optimize-%s.json", stamp))
	if err := os.WriteFile(trialsPath, data, 0o644); err != nil {
		return fmt.Errorf("write trials: %w", err)
	}
	app.Logger.Info("Optimization complete", "trials", len(trials), "path", trialsPath)

	best := trials[0]
	if best.Err != nil {
		return fmt.Errorf("no successful trial: %w", best.Err)
	}
	cfg := base
	cfg.Risk.RiskPerTradePercent = best.Params.RiskPerTradePercent
	cfg.Risk.StopLossPercent = best.Params.StopLossPercent
	cfg.Risk.TakeProfitPercent = best.Params.TakeProfitPercent
	cfg.ConfidenceThreshold = best.Params.ConfidenceThreshold

	res, err := simulate(ctx, app.Logger, cfg, bars)
	if err != nil {
		return err
	}
	return writeOutputs(app.Logger, res, dir, "best")
}

func writeOutputs(logger core.ILogger, res *backtest.Result, dir, prefix string) error {
	now := time.Now().UTC()
	report := backtest.Report(res, now)
	fmt.Println(report)

	base := fmt.Sprintf("%s-%s-%s", prefix, strings.ReplaceAll(res.Symbol, "/", ""), now.Format("20060102-150405"))
	if err := backtest.WriteResultJSON(filepath.Join(dir, base+".json"), res); err != nil {
		return err
	}
	reportPath := filepath.Join(dir, base+".md")
	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("Backtest written", "report", reportPath, "trades", res.Metrics.TotalTrades)
	return nil
}

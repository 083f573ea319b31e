package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradecore/internal/classifier"
	"tradecore/internal/config"
	"tradecore/internal/core"
	"tradecore/internal/infrastructure/health"
	"tradecore/internal/infrastructure/metrics"
	"tradecore/internal/notify"
	"tradecore/internal/scheduler"
	"tradecore/internal/trading/arbitrage"
	"tradecore/internal/trading/order"
	"tradecore/internal/trading/trader"
	"tradecore/pkg/apperrors"
	"tradecore/pkg/concurrency"

	"golang.org/x/sync/errgroup"
)

const (
	TaskMonitor   = "balance_monitor"
	TaskArbitrage = "arbitrage_scan"
	TaskRisk      = "risk_check"
	TaskAutosave  = "autosave"

	finalSaveTimeout = 10 * time.Second
)

// Service is the assembled live decision service
type Service struct {
	cfg    *config.Config
	logger core.ILogger

	Venues    []core.IExchange
	Pool      *concurrency.WorkerPool
	Monitor   *arbitrage.Monitor
	Executor  *order.Executor
	Trader    *trader.Trader
	Bus       *notify.Bus
	Store     core.IStateStore
	Scheduler *scheduler.Scheduler
	Health    *health.Manager
	Metrics   *metrics.Server

	closers []func() error
}

// NewService builds every live component from cfg. Nothing runs until Run.
func NewService(cfg *config.Config, logger core.ILogger) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		logger: logger.WithField("component", "service"),
		Health: health.NewManager(logger),
	}

	venues, err := BuildVenues(cfg)
	if err != nil {
		return nil, err
	}
	s.Venues = venues

	st, closeStore, err := BuildStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s.Store = st
	s.closers = append(s.closers, closeStore)

	bus, sinkChecks, closeBus := BuildBus(cfg, logger)
	s.Bus = bus
	s.closers = append(s.closers, closeBus)
	for name, check := range sinkChecks {
		s.Health.Register(name, check)
	}

	s.Pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "quotes",
		MaxWorkers:  cfg.Concurrency.QuotePoolSize,
		MaxCapacity: cfg.Concurrency.QuotePoolBuffer,
	}, logger)
	s.closers = append(s.closers, func() error {
		s.Pool.Stop()
		return nil
	})

	collector := arbitrage.NewCollector(venues, CollectorConfig(cfg), s.Pool, logger)
	scanner := arbitrage.NewScanner(ScannerConfig(cfg.Arbitrage))
	s.Monitor = arbitrage.NewMonitor(collector, scanner, bus, MonitorConfig(cfg.Arbitrage), logger)

	s.Executor = order.NewExecutor(logger)
	if cfg.Concurrency.OrderRateLimit > 0 {
		s.Executor.SetRateLimit(cfg.Concurrency.OrderRateLimit, cfg.Concurrency.OrderBurst)
	}

	t, err := trader.New(venues, classifier.NewHeuristic(0), bus, s.Executor, TraderConfig(cfg), logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("trader: %w", err)
	}
	s.Trader = t

	if err := s.buildScheduler(logger); err != nil {
		s.Close()
		return nil, err
	}

	s.Health.Register("order_executor", s.Executor.CheckHealth)
	s.Health.Register("quote_pool", s.Pool.CheckHealth)
	s.Health.Register("circuit_breaker", t.Breaker().Allow)

	if cfg.Telemetry.EnableMetrics {
		s.Metrics = metrics.NewServer(cfg.Telemetry.MetricsPort, s.Health, logger)
	}
	return s, nil
}

func (s *Service) buildScheduler(logger core.ILogger) error {
	sc := s.cfg.Scheduler
	s.Scheduler = scheduler.New(logger)

	tasks := []scheduler.Task{
		{Name: TaskMonitor, Interval: sc.MonitorInterval, RunOnStart: true, Run: s.refreshBalances},
		{Name: TaskArbitrage, Interval: sc.ArbitrageInterval, RunOnStart: true, Run: s.scanArbitrage},
		{Name: TaskRisk, Interval: sc.RiskInterval, Run: s.checkRisk},
		{Name: TaskAutosave, Interval: sc.AutosaveInterval, Run: s.Save},
	}
	for _, task := range tasks {
		if err := s.Scheduler.Add(task); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		// three missed intervals before the probe fails
		s.Health.Register("task."+task.Name, s.Scheduler.HealthCheck(task.Name, 3*task.Interval))
	}
	return nil
}

func (s *Service) refreshBalances(ctx context.Context) error {
	err := s.Trader.RefreshBalances(ctx)
	st := s.Trader.Status()
	s.logger.Info("Balances",
		"total", st.TotalBalance.StringFixed(2),
		"open_positions", len(st.OpenPositions),
		"realized_pnl", st.RealizedPnL.StringFixed(2),
		"arbitrage_profit", st.ArbitrageProfit.StringFixed(2))
	return err
}

func (s *Service) scanArbitrage(ctx context.Context) error {
	opps := s.Monitor.Tick(ctx)
	if s.cfg.Arbitrage.AutoExecute && len(opps) > 0 {
		fills := s.Trader.HandleOpportunities(ctx, opps)
		if len(fills) > 0 {
			s.logger.Info("Arbitrage executed", "fills", len(fills))
		}
	}
	failed := make(map[string]struct{})
	for _, f := range s.Monitor.LastFailures() {
		failed[f.Venue] = struct{}{}
	}
	if len(s.Venues) > 0 && len(failed) == len(s.Venues) {
		return fmt.Errorf("%w: every venue failed to quote", apperrors.ErrVenueUnavailable)
	}
	return nil
}

func (s *Service) checkRisk(ctx context.Context) error {
	closed, err := s.Trader.CheckRisk(ctx)
	for _, trade := range closed {
		s.logger.Info("Risk exit",
			"id", trade.ID,
			"symbol", trade.Symbol,
			"reason", string(trade.ExitReason),
			"profit", trade.Profit.StringFixed(2))
	}
	return err
}

// Restore loads the last snapshot into the trader. A missing snapshot is not an error.
func (s *Service) Restore(ctx context.Context) error {
	snap, err := s.Store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		s.logger.Info("No snapshot found, starting fresh")
		return nil
	}
	return s.Trader.Restore(snap)
}

// Save writes the trader snapshot to the store
func (s *Service) Save(ctx context.Context) error {
	if err := s.Store.SaveSnapshot(ctx, s.Trader.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Run runs the scheduler and metrics server until ctx is cancelled, then
// writes a final snapshot.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Scheduler.Run(gctx)
	})
	if s.Metrics != nil {
		g.Go(func() error {
			return s.Metrics.Run(gctx)
		})
	}
	runErr := g.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
	defer cancel()
	if err := s.Save(saveCtx); err != nil {
		s.logger.Error("Final snapshot failed", "error", err)
		return errors.Join(runErr, err)
	}
	s.logger.Info("Final snapshot saved")
	return runErr
}

// Close releases pools, sinks and the store
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/core"
	"tradecore/internal/exchange/paper"
	"tradecore/internal/notify"
	"tradecore/internal/risk"
	"tradecore/internal/store"
	"tradecore/internal/trading/arbitrage"
	"tradecore/internal/trading/backtest"
	"tradecore/internal/trading/trader"

	"github.com/shopspring/decimal"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func decMap(m map[string]float64) map[string]decimal.Decimal {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = dec(v)
	}
	return out
}

// RiskConfig converts the live risk section
func RiskConfig(c config.RiskConfig) risk.Config {
	return risk.Config{
		RiskPerTradePercent: dec(c.RiskPerTradePercent),
		StopLossPercent:     dec(c.StopLossPercent),
		TakeProfitPercent:   dec(c.TakeProfitPercent),
		MaxPositions:        c.MaxPositions,
		MaxPositionPercent:  dec(c.MaxPositionPercent),
		LotBands:            LotBands(c.LotBands),
	}
}

// LotBands converts configured lot floors. An empty list keeps the stock bands.
func LotBands(bands []config.LotBand) []risk.LotBand {
	if len(bands) == 0 {
		return risk.DefaultLotBands()
	}
	out := make([]risk.LotBand, 0, len(bands))
	for _, b := range bands {
		out = append(out, risk.LotBand{Below: dec(b.Below), MinLot: dec(b.MinLot)})
	}
	return out
}

// TraderConfig converts the sections the trader reads
func TraderConfig(c *config.Config) trader.Config {
	return trader.Config{
		Risk: RiskConfig(c.Risk),
		Circuit: risk.CircuitConfig{
			MaxConsecutiveLosses: c.Risk.MaxConsecutiveLosses,
			MaxLossAmount:        dec(c.Risk.MaxLossAmount),
			CooldownPeriod:       c.Risk.CooldownPeriod,
		},
		MinConfidence:        c.Risk.MinConfidence,
		AutoExecuteThreshold: dec(c.Arbitrage.AutoExecuteThreshold),
		VenueTimeout:         c.Arbitrage.VenueTimeout,
		FeeRate:              dec(c.Arbitrage.FeeRate),
		Symbol:               c.App.Symbol,
	}
}

// BacktestConfig converts the backtest section
func BacktestConfig(c config.BacktestConfig) backtest.Config {
	r := risk.DefaultConfig()
	r.RiskPerTradePercent = dec(c.RiskPerTradePercent)
	r.StopLossPercent = dec(c.StopLossPercent)
	r.TakeProfitPercent = dec(c.TakeProfitPercent)
	if c.MaxPositions > 0 {
		r.MaxPositions = c.MaxPositions
	}
	r.LotBands = LotBands(c.LotBands)
	return backtest.Config{
		StartingCapital:        dec(c.StartingCapital),
		Symbol:                 c.Symbol,
		Timeframe:              c.Timeframe,
		ConfidenceThreshold:    c.ConfidenceThreshold,
		MaxPositionCostPercent: dec(c.MaxPositionCostPercent),
		Risk:                   r,
		EnforceStops:           c.EnforceStops,
	}
}

// CollectorConfig converts the venue call limits of the arbitrage section
func CollectorConfig(c *config.Config) arbitrage.CollectorConfig {
	cc := arbitrage.CollectorConfig{
		VenueTimeout:    c.Arbitrage.VenueTimeout,
		MaxRetries:      c.Arbitrage.MaxRetries,
		BreakerFailures: c.Arbitrage.BreakerFailures,
		BreakerWindow:   c.Arbitrage.BreakerWindow,
		BreakerDelay:    c.Arbitrage.BreakerDelay,
	}
	for _, name := range c.App.ActiveVenues {
		if c.Venues[name].ExcludeFromQuote {
			cc.ExcludeFromQuote = append(cc.ExcludeFromQuote, name)
		}
	}
	return cc
}

// ScannerConfig converts the amount table, keeping the stock amounts for unlisted symbols
func ScannerConfig(c config.ArbitrageConfig) arbitrage.ScannerConfig {
	sc := arbitrage.DefaultScannerConfig()
	for symbol, amount := range c.Amounts {
		sc.Amounts[symbol] = dec(amount)
	}
	if c.DefaultAmount > 0 {
		sc.DefaultAmount = dec(c.DefaultAmount)
	}
	return sc
}

// MonitorConfig converts the scan universe and reporting threshold
func MonitorConfig(c config.ArbitrageConfig) arbitrage.MonitorConfig {
	return arbitrage.MonitorConfig{
		Universe:        c.Universe,
		ReportThreshold: dec(c.ReportThreshold),
	}
}

// BuildVenues creates the active venues in app.active_venues order
func BuildVenues(c *config.Config) ([]core.IExchange, error) {
	venues := make([]core.IExchange, 0, len(c.App.ActiveVenues))
	for _, name := range c.App.ActiveVenues {
		vc, ok := c.Venues[name]
		if !ok {
			return nil, fmt.Errorf("venue %s is not configured", name)
		}
		switch vc.Type {
		case "paper":
			venues = append(venues, paper.New(paper.Config{
				Name:             name,
				StartingBalance:  dec(vc.StartingBalance),
				PriceSkewPercent: dec(vc.PriceSkewPercent),
				StrictSymbols:    vc.StrictSymbols,
				Holdings:         decMap(vc.Holdings),
			}))
		default:
			return nil, fmt.Errorf("venue %s: unsupported type %q", name, vc.Type)
		}
	}
	return venues, nil
}

// BuildStore opens the configured snapshot store. The returned close func is never nil.
func BuildStore(c config.StoreConfig) (core.IStateStore, func() error, error) {
	switch c.Type {
	case "memory":
		return store.NewMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		if dir := filepath.Dir(c.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		s, err := store.NewSQLiteStore(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store type %q", c.Type)
	}
}

// BuildBus creates the notification bus with the configured sinks.
// The returned map holds health checks for sinks that have one. The close
// func flushes the bus before releasing sink connections.
func BuildBus(c *config.Config, logger core.ILogger) (*notify.Bus, map[string]func() error, func() error) {
	timeout := c.Concurrency.NotifySinkTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bus := notify.NewBus(timeout, logger)
	checks := make(map[string]func() error)
	closers := []func() error{}

	if c.Notify.LogEvents {
		bus.AddSink(notify.NewLogSink(logger))
	}
	if rc := c.Notify.Redis; rc.Enabled {
		sink := notify.NewRedisSink(notify.RedisConfig{
			Addr:     rc.Addr,
			DB:       rc.DB,
			Username: rc.Username,
			Password: rc.Password.Value(),
			Stream:   rc.Stream,
			MaxLen:   rc.MaxLen,
		})
		bus.AddSink(sink)
		checks["redis"] = pingCheck(sink.Ping)
		closers = append(closers, sink.Close)
	}

	closeFn := func() error {
		bus.Close()
		var errs []error
		for _, closeSink := range closers {
			errs = append(errs, closeSink())
		}
		return errors.Join(errs...)
	}
	return bus, checks, closeFn
}

func pingCheck(ping func(context.Context) error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return ping(ctx)
	}
}

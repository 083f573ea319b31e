package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradecore/internal/core"
	"tradecore/pkg/apperrors"
	"tradecore/pkg/concurrency"
	"tradecore/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CollectorConfig bounds every venue call
type CollectorConfig struct {
	VenueTimeout     time.Duration
	MaxRetries       int
	BreakerFailures  uint
	BreakerWindow    uint
	BreakerDelay     time.Duration
	ExcludeFromQuote []string
}

// DefaultCollectorConfig returns conservative venue limits
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		VenueTimeout:    3 * time.Second,
		MaxRetries:      2,
		BreakerFailures: 5,
		BreakerWindow:   10,
		BreakerDelay:    30 * time.Second,
	}
}

// VenueFailure records a venue/symbol that was absent from a tick
type VenueFailure struct {
	Venue  string
	Symbol string
	Err    error
}

func (f VenueFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Venue, f.Symbol, f.Err)
}

func (f VenueFailure) Unwrap() error { return f.Err }

// Collector fetches quotes from every venue concurrently. A slow or failing
// venue is dropped from the snapshot instead of holding up the tick.
type Collector struct {
	venues   []core.IExchange
	exclude  map[string]struct{}
	cfg      CollectorConfig
	pool     *concurrency.WorkerPool
	pipeline map[string]failsafe.Executor[*core.Ticker]
	logger   core.ILogger
}

func NewCollector(venues []core.IExchange, cfg CollectorConfig, pool *concurrency.WorkerPool, logger core.ILogger) *Collector {
	if cfg.VenueTimeout <= 0 {
		cfg.VenueTimeout = DefaultCollectorConfig().VenueTimeout
	}
	c := &Collector{
		venues:   venues,
		exclude:  make(map[string]struct{}),
		cfg:      cfg,
		pool:     pool,
		pipeline: make(map[string]failsafe.Executor[*core.Ticker]),
		logger:   logger.WithField("component", "quote_collector"),
	}
	for _, name := range cfg.ExcludeFromQuote {
		c.exclude[name] = struct{}{}
	}
	for _, v := range venues {
		c.pipeline[v.GetName()] = newVenuePipeline(cfg)
	}
	return c
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, apperrors.ErrInvalidSymbol) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func newVenuePipeline(cfg CollectorConfig) failsafe.Executor[*core.Ticker] {
	retryPolicy := retrypolicy.NewBuilder[*core.Ticker]().
		HandleIf(func(_ *core.Ticker, err error) bool {
			return retryable(err)
		}).
		WithBackoff(50*time.Millisecond, 500*time.Millisecond).
		WithMaxRetries(cfg.MaxRetries).
		Build()

	failures, window := cfg.BreakerFailures, cfg.BreakerWindow
	if failures == 0 || window == 0 {
		failures, window = 5, 10
	}
	delay := cfg.BreakerDelay
	if delay <= 0 {
		delay = 30 * time.Second
	}
	breaker := circuitbreaker.NewBuilder[*core.Ticker]().
		HandleIf(func(_ *core.Ticker, err error) bool {
			return err != nil && !errors.Is(err, apperrors.ErrInvalidSymbol)
		}).
		WithFailureThresholdRatio(failures, window).
		WithDelay(delay).
		Build()

	return failsafe.With[*core.Ticker](retryPolicy, breaker)
}

// Venues returns the names of venues that take part in quote collection
func (c *Collector) Venues() []string {
	var names []string
	for _, v := range c.venues {
		if _, skip := c.exclude[v.GetName()]; !skip {
			names = append(names, v.GetName())
		}
	}
	return names
}

// Collect fetches a quote per venue and symbol. Failures are returned sorted
// by venue then symbol and each one wraps ErrVenueUnavailable.
func (c *Collector) Collect(ctx context.Context, universe []string) (core.QuoteSnapshot, []VenueFailure) {
	snapshot := make(core.QuoteSnapshot)
	var (
		mu       sync.Mutex
		failures []VenueFailure
		tasks    []func()
		keys     []VenueFailure
	)

	for _, venue := range c.venues {
		name := venue.GetName()
		if _, skip := c.exclude[name]; skip {
			continue
		}
		for _, symbol := range universe {
			venue, symbol := venue, symbol
			keys = append(keys, VenueFailure{Venue: name, Symbol: symbol})
			tasks = append(tasks, func() {
				q, err := c.fetch(ctx, venue, symbol)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, VenueFailure{Venue: name, Symbol: symbol, Err: err})
					return
				}
				snapshot.Put(q)
			})
		}
	}

	for _, idx := range c.pool.RunAll(tasks) {
		k := keys[idx]
		failures = append(failures, VenueFailure{
			Venue:  k.Venue,
			Symbol: k.Symbol,
			Err:    fmt.Errorf("%w: worker pool saturated", apperrors.ErrVenueUnavailable),
		})
	}

	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Venue != failures[j].Venue {
			return failures[i].Venue < failures[j].Venue
		}
		return failures[i].Symbol < failures[j].Symbol
	})
	return snapshot, failures
}

func (c *Collector) fetch(ctx context.Context, venue core.IExchange, symbol string) (core.Quote, error) {
	name := venue.GetName()
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.VenueTimeout)
	defer cancel()

	start := time.Now()
	ticker, err := c.pipeline[name].WithContext(callCtx).GetWithExecution(func(exec failsafe.Execution[*core.Ticker]) (*core.Ticker, error) {
		return venue.FetchTicker(exec.Context(), symbol)
	})

	metrics := telemetry.GetGlobalMetrics()
	attrs := metric.WithAttributes(attribute.String("venue", name))
	metrics.LatencyVenue.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err == nil && ticker == nil {
		err = errors.New("empty ticker")
	}
	if err != nil {
		if !errors.Is(err, apperrors.ErrInvalidSymbol) {
			metrics.VenueFailuresTotal.Add(ctx, 1, attrs)
			c.logger.Warn("Venue quote unavailable", "venue", name, "symbol", symbol, "error", err)
		}
		return core.Quote{}, fmt.Errorf("%w: %w", apperrors.ErrVenueUnavailable, err)
	}

	return core.Quote{
		Venue:  name,
		Symbol: symbol,
		Bid:    ticker.Bid,
		Ask:    ticker.Ask,
		Last:   ticker.Last,
	}, nil
}

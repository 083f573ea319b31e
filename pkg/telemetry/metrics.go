package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names
const (
	MetricOpportunitiesTotal = "tradecore_arbitrage_opportunities_total"
	MetricBestSpreadPercent  = "tradecore_arbitrage_best_spread_percent"
	MetricTradesClosedTotal  = "tradecore_trades_closed_total"
	MetricPnLRealizedTotal   = "tradecore_pnl_realized_total"
	MetricOrdersPlacedTotal  = "tradecore_orders_placed_total"
	MetricOrdersRejected     = "tradecore_orders_rejected_total"
	MetricVenueFailuresTotal = "tradecore_venue_failures_total"
	MetricLatencyVenue       = "tradecore_latency_venue_ms"
	MetricBacktestRunsTotal  = "tradecore_backtest_runs_total"
	MetricPositionsOpen      = "tradecore_positions_open"
	MetricBalance            = "tradecore_balance"
	MetricCircuitBreakerOpen = "tradecore_circuit_breaker_open"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	OpportunitiesTotal metric.Int64Counter
	TradesClosedTotal  metric.Int64Counter
	PnLRealizedTotal   metric.Float64Counter
	OrdersPlacedTotal  metric.Int64Counter
	OrdersRejected     metric.Int64Counter
	VenueFailuresTotal metric.Int64Counter
	LatencyVenue       metric.Float64Histogram
	BacktestRunsTotal  metric.Int64Counter
	BestSpreadPercent  metric.Float64ObservableGauge
	PositionsOpen      metric.Int64ObservableGauge
	Balance            metric.Float64ObservableGauge
	CircuitBreakerOpen metric.Int64ObservableGauge

	// State for observable gauges
	mu            sync.RWMutex
	bestSpreadMap map[string]float64
	positionsMap  map[string]int64
	balanceMap    map[string]float64
	cbOpenMap     map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder.
// Instruments are no-ops until InitMetrics is called with a real meter.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			bestSpreadMap: make(map[string]float64),
			positionsMap:  make(map[string]int64),
			balanceMap:    make(map[string]float64),
			cbOpenMap:     make(map[string]int64),
		}
		_ = globalMetrics.InitMetrics(noop.NewMeterProvider().Meter("tradecore"))
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OpportunitiesTotal, err = meter.Int64Counter(MetricOpportunitiesTotal, metric.WithDescription("Arbitrage opportunities above the reporting threshold"))
	if err != nil {
		return err
	}

	m.TradesClosedTotal, err = meter.Int64Counter(MetricTradesClosedTotal, metric.WithDescription("Positions closed"))
	if err != nil {
		return err
	}

	m.PnLRealizedTotal, err = meter.Float64Counter(MetricPnLRealizedTotal, metric.WithDescription("Cumulative realized profit/loss"))
	if err != nil {
		return err
	}

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Orders accepted by a venue"))
	if err != nil {
		return err
	}

	m.OrdersRejected, err = meter.Int64Counter(MetricOrdersRejected, metric.WithDescription("Orders rejected by a venue or by risk"))
	if err != nil {
		return err
	}

	m.VenueFailuresTotal, err = meter.Int64Counter(MetricVenueFailuresTotal, metric.WithDescription("Venue calls that failed or timed out"))
	if err != nil {
		return err
	}

	m.LatencyVenue, err = meter.Float64Histogram(MetricLatencyVenue, metric.WithDescription("Latency of venue calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.BacktestRunsTotal, err = meter.Int64Counter(MetricBacktestRunsTotal, metric.WithDescription("Completed backtest runs"))
	if err != nil {
		return err
	}

	// Observables
	m.BestSpreadPercent, err = meter.Float64ObservableGauge(MetricBestSpreadPercent, metric.WithDescription("Best arbitrage spread seen on the last scan"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.bestSpreadMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.PositionsOpen, err = meter.Int64ObservableGauge(MetricPositionsOpen, metric.WithDescription("Open positions per symbol"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.positionsMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.Balance, err = meter.Float64ObservableGauge(MetricBalance, metric.WithDescription("Total balance per venue"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for venue, val := range m.balanceMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("venue", venue)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("Circuit breaker open state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for scope, val := range m.cbOpenMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("scope", scope)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Helpers to update observable state

func (m *MetricsHolder) SetCircuitBreakerOpen(scope string, open bool) {
	val := int64(0)
	if open {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbOpenMap[scope] = val
}

func (m *MetricsHolder) SetBestSpread(symbol string, percent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bestSpreadMap[symbol] = percent
}

func (m *MetricsHolder) SetOpenPositions(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionsMap[symbol] = count
}

func (m *MetricsHolder) SetBalance(venue string, total float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceMap[venue] = total
}

func (m *MetricsHolder) GetOpenPositions() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64, len(m.positionsMap))
	for k, v := range m.positionsMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetBalances() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64, len(m.balanceMap))
	for k, v := range m.balanceMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) IsCircuitBreakerOpen(scope string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cbOpenMap[scope] == 1
}

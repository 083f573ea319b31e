package arbitrage

import (
	"context"
	"sync"
	"time"

	"tradecore/internal/core"
	"tradecore/internal/notify"
	"tradecore/pkg/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MonitorConfig controls what a scan tick reports
type MonitorConfig struct {
	Universe        []string
	ReportThreshold decimal.Decimal
}

// Monitor runs collect-then-scan ticks and keeps the latest ranking
type Monitor struct {
	collector *Collector
	scanner   *Scanner
	publisher notify.Publisher
	cfg       MonitorConfig
	logger    core.ILogger
	now       func() time.Time

	mu           sync.RWMutex
	last         []core.ArbitrageOpportunity
	lastFailures []VenueFailure
	lastScan     time.Time
}

func NewMonitor(collector *Collector, scanner *Scanner, publisher notify.Publisher, cfg MonitorConfig, logger core.ILogger) *Monitor {
	if len(cfg.Universe) == 0 {
		cfg.Universe = DefaultUniverse()
	}
	return &Monitor{
		collector: collector,
		scanner:   scanner,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.WithField("component", "arbitrage_monitor"),
		now:       time.Now,
	}
}

// Tick collects quotes, ranks opportunities and publishes an arbitrage event
// for each one above the reporting threshold. It returns the full ranking.
func (m *Monitor) Tick(ctx context.Context) []core.ArbitrageOpportunity {
	quotes, failures := m.collector.Collect(ctx, m.cfg.Universe)
	opps := m.scanner.Scan(quotes, m.cfg.Universe)
	at := m.now()

	m.mu.Lock()
	m.last = opps
	m.lastFailures = failures
	m.lastScan = at
	m.mu.Unlock()

	active := Above(opps, m.cfg.ReportThreshold)
	metrics := telemetry.GetGlobalMetrics()
	best := make(map[string]bool)
	for _, o := range active {
		metrics.OpportunitiesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", o.Symbol)))
		if !best[o.Symbol] {
			best[o.Symbol] = true
			metrics.SetBestSpread(o.Symbol, o.ProfitPercent.InexactFloat64())
		}
		if m.publisher != nil {
			m.publisher.Publish(ctx, notify.ArbitrageEvent(o, at))
		}
	}

	m.logger.Debug("Arbitrage scan complete",
		"opportunities", len(opps),
		"active", len(active),
		"venue_failures", len(failures))

	return opps
}

// Last returns the ranking from the most recent tick
func (m *Monitor) Last() []core.ArbitrageOpportunity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]core.ArbitrageOpportunity, len(m.last))
	copy(res, m.last)
	return res
}

// Active returns last-tick opportunities above the reporting threshold
func (m *Monitor) Active() []core.ArbitrageOpportunity {
	return Above(m.Last(), m.cfg.ReportThreshold)
}

func (m *Monitor) LastFailures() []VenueFailure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]VenueFailure, len(m.lastFailures))
	copy(res, m.lastFailures)
	return res
}

func (m *Monitor) LastScan() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastScan
}

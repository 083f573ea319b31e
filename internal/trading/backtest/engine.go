// Package backtest replays derived signals against a price series
package backtest

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"tradecore/internal/core"
	"tradecore/internal/risk"
	"tradecore/internal/trading/ledger"
	"tradecore/internal/trading/performance"
	"tradecore/pkg/apperrors"
	"tradecore/pkg/telemetry"
	"tradecore/pkg/tradingutils"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Venue is the venue name recorded on simulated positions
const Venue = "backtest"

// State is the engine lifecycle stage
type State int

const (
	StateNew State = iota
	StateInitialized
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "new"
	}
}

// Config controls a single run
type Config struct {
	StartingCapital        decimal.Decimal
	Symbol                 string
	Timeframe              string
	ConfidenceThreshold    float64
	MaxPositionCostPercent decimal.Decimal
	Risk                   risk.Config
	// EnforceStops closes positions whose stop or target is touched by a later bar
	EnforceStops bool
}

func DefaultConfig() Config {
	return Config{
		StartingCapital:        decimal.NewFromInt(10000),
		Symbol:                 "BTC/USD",
		Timeframe:              "1h",
		ConfidenceThreshold:    0.7,
		MaxPositionCostPercent: decimal.NewFromInt(10),
		Risk:                   risk.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if !c.StartingCapital.IsPositive() {
		return fmt.Errorf("%w: starting capital must be positive", apperrors.ErrInvalidRiskParameters)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %v outside [0,1]", apperrors.ErrInvalidRiskParameters, c.ConfidenceThreshold)
	}
	if !c.MaxPositionCostPercent.IsPositive() {
		return fmt.Errorf("%w: max position cost percent must be positive", apperrors.ErrInvalidRiskParameters)
	}
	return c.Risk.Validate()
}

// Result is the immutable outcome of a completed run
type Result struct {
	Symbol        string              `json:"symbol"`
	Timeframe     string              `json:"timeframe"`
	Trades        []core.ClosedTrade  `json:"trades"`
	OpenPositions []core.Position     `json:"open_positions"`
	Equity        []core.EquityPoint  `json:"equity"`
	Metrics       performance.Metrics `json:"metrics"`
	FinalBalance  decimal.Decimal     `json:"final_balance"`
	Signals       int                 `json:"signals"`
	Rejected      int                 `json:"rejected"`
}

// Engine is a single-use-per-Initialize backtester
type Engine struct {
	mu    sync.Mutex
	state State

	cfg        Config
	classifier core.ISignalClassifier
	ledger     *ledger.Ledger
	balance    decimal.Decimal
	equity     []core.EquityPoint
	seq        int
	signals    int
	rejected   int

	logger core.ILogger
}

func NewEngine(classifier core.ISignalClassifier, logger core.ILogger) *Engine {
	log := logger.WithField("component", "backtest")
	return &Engine{
		classifier: classifier,
		ledger:     ledger.New(log),
		logger:     log,
	}
}

// State reports the lifecycle stage
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Initialize resets balance, ledger and equity curve. It fails while a run is in progress.
func (e *Engine) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		return fmt.Errorf("%w: cannot initialize while running", apperrors.ErrInvalidState)
	}

	e.cfg = cfg
	e.balance = cfg.StartingCapital
	e.ledger.Reset()
	e.equity = []core.EquityPoint{{Balance: cfg.StartingCapital}}
	e.seq, e.signals, e.rejected = 0, 0, 0
	e.state = StateInitialized
	return nil
}

// Run derives signals from bars and replays them
func (e *Engine) Run(ctx context.Context, bars []Bar) (*Result, error) {
	e.mu.Lock()
	symbol, timeframe := e.cfg.Symbol, e.cfg.Timeframe
	e.mu.Unlock()
	return e.Replay(ctx, bars, Signals(bars, symbol, timeframe))
}

// Replay processes a signal sequence in order. Bars supply the run start time
// and, with EnforceStops, the highs and lows checked against open positions.
func (e *Engine) Replay(ctx context.Context, bars []Bar, signals iter.Seq[Signal]) (*Result, error) {
	e.mu.Lock()
	if e.state != StateInitialized {
		state := e.state
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: run requires an initialized engine, state is %s", apperrors.ErrInvalidState, state)
	}
	e.state = StateRunning
	e.mu.Unlock()

	ctx, span := telemetry.GetTracer("tradecore/backtest").Start(ctx, "backtest.run",
		trace.WithAttributes(
			attribute.String("symbol", e.cfg.Symbol),
			attribute.String("timeframe", e.cfg.Timeframe),
			attribute.Int("bars", len(bars)),
		))
	defer span.End()

	if len(bars) > 0 {
		e.equity[0].Time = bars[0].Time
	}

	checked := 0
	for sig := range signals {
		if e.cfg.EnforceStops {
			for ; checked <= sig.Index && checked < len(bars); checked++ {
				e.checkStops(bars[checked])
			}
		}
		e.process(ctx, sig)
	}
	if e.cfg.EnforceStops {
		for ; checked < len(bars); checked++ {
			e.checkStops(bars[checked])
		}
	}

	trades := e.ledger.ClosedTrades()
	equity := append([]core.EquityPoint(nil), e.equity...)
	res := &Result{
		Symbol:        e.cfg.Symbol,
		Timeframe:     e.cfg.Timeframe,
		Trades:        trades,
		OpenPositions: e.ledger.OpenPositions(),
		Equity:        equity,
		Metrics:       performance.Compute(trades, equity),
		FinalBalance:  e.balance,
		Signals:       e.signals,
		Rejected:      e.rejected,
	}

	span.SetAttributes(
		attribute.Int("trades", res.Metrics.TotalTrades),
		attribute.Float64("sharpe", res.Metrics.SharpeRatio),
	)
	telemetry.GetGlobalMetrics().BacktestRunsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("symbol", e.cfg.Symbol)))

	e.logger.Info("Backtest completed",
		"symbol", e.cfg.Symbol,
		"signals", e.signals,
		"trades", res.Metrics.TotalTrades,
		"final_balance", e.balance.StringFixed(2))

	e.mu.Lock()
	e.state = StateCompleted
	e.mu.Unlock()
	return res, nil
}

func (e *Engine) process(ctx context.Context, sig Signal) {
	e.signals++
	pred, err := e.classifier.Predict(ctx, core.SignalRequest{
		Symbol:    sig.Symbol,
		Side:      sig.Side,
		Price:     sig.Price,
		Timeframe: sig.Timeframe,
		Time:      sig.Time,
	})
	if err != nil {
		e.logger.Warn("Classifier failed, skipping signal", "index", sig.Index, "error", err)
		e.rejected++
		return
	}
	if pred.Confidence < e.cfg.ConfidenceThreshold {
		e.rejected++
		return
	}

	switch sig.Side {
	case core.SideBuy:
		if err := e.buy(sig); err != nil {
			e.logger.Debug("Buy rejected", "index", sig.Index, "reason", err)
			e.rejected++
		}
	case core.SideSell:
		e.closeAll(sig)
	}
}

func (e *Engine) buy(sig Signal) error {
	if err := risk.CheckExposure(e.ledger.OpenCount(), e.cfg.Risk).Err(); err != nil {
		return err
	}
	stop := risk.DeriveStopLoss(sig.Price, e.cfg.Risk)
	target := risk.DeriveTakeProfit(sig.Price, e.cfg.Risk)
	size, err := risk.SizePosition(e.balance, sig.Price, stop, e.cfg.Risk)
	if err != nil {
		return err
	}

	// Rounded so decimal division residue in the sizing cap does not reject a
	// position sized exactly at the cap.
	cost := tradingutils.RoundPrice(size.Mul(sig.Price), 8)
	limit := tradingutils.PercentOf(e.balance, e.cfg.MaxPositionCostPercent)
	if cost.GreaterThan(limit) {
		return fmt.Errorf("%w: cost %s above %s%% of balance", apperrors.ErrPositionTooLarge, cost.StringFixed(2), e.cfg.MaxPositionCostPercent)
	}
	if cost.GreaterThan(e.balance) {
		return fmt.Errorf("%w: cost %s, balance %s", apperrors.ErrInsufficientBalance, cost.StringFixed(2), e.balance.StringFixed(2))
	}

	e.seq++
	pos, err := e.ledger.Open(core.Position{
		ID:              fmt.Sprintf("bt-%d", e.seq),
		Symbol:          sig.Symbol,
		Venue:           Venue,
		Side:            core.SideBuy,
		EntryPrice:      sig.Price,
		Size:            size,
		StopLossPrice:   stop,
		TakeProfitPrice: target,
		EntryTime:       sig.Time,
	})
	if err != nil {
		return err
	}
	e.balance = e.balance.Sub(pos.Cost)
	return nil
}

// closeAll applies the close-all-on-sell policy: every open position of the
// run is closed at the signal price regardless of symbol.
func (e *Engine) closeAll(sig Signal) {
	closed := 0
	for _, p := range e.ledger.OpenPositions() {
		if e.settle(p.ID, sig.Price, sig, core.ExitSignal) {
			closed++
		}
	}
	if closed > 0 {
		e.equity = append(e.equity, core.EquityPoint{Time: sig.Time, Balance: e.balance})
	}
}

func (e *Engine) checkStops(bar Bar) {
	for _, p := range e.ledger.OpenPositions() {
		var (
			price  decimal.Decimal
			reason core.ExitReason
		)
		switch {
		case p.StopLossPrice.IsPositive() && bar.Low.LessThanOrEqual(p.StopLossPrice):
			price, reason = p.StopLossPrice, core.ExitStopLoss
		case p.TakeProfitPrice.IsPositive() && bar.High.GreaterThanOrEqual(p.TakeProfitPrice):
			price, reason = p.TakeProfitPrice, core.ExitTakeProfit
		default:
			continue
		}
		if e.settle(p.ID, price, Signal{Time: bar.Time}, reason) {
			e.equity = append(e.equity, core.EquityPoint{Time: bar.Time, Balance: e.balance})
		}
	}
}

func (e *Engine) settle(id string, price decimal.Decimal, sig Signal, reason core.ExitReason) bool {
	trade, err := e.ledger.Close(id, price, sig.Time, reason)
	if err != nil {
		e.logger.Error("Failed to close simulated position", "id", id, "error", err)
		return false
	}
	e.balance = e.balance.Add(trade.Cost).Add(trade.Profit)
	return true
}

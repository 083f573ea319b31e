// Package trader is the live decision service. It owns the live ledger and the
// cached venue balances, and serializes every mutation behind one mutex.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradecore/internal/core"
	"tradecore/internal/notify"
	"tradecore/internal/risk"
	"tradecore/internal/trading/ledger"
	"tradecore/internal/trading/order"
	"tradecore/pkg/apperrors"
	"tradecore/pkg/telemetry"
	"tradecore/pkg/tradingutils"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// order quantities are sent with at most this many decimals
const quantityDecimals = 8

// Config holds the trader's decision thresholds
type Config struct {
	Risk                 risk.Config
	Circuit              risk.CircuitConfig
	MinConfidence        float64
	AutoExecuteThreshold decimal.Decimal
	VenueTimeout         time.Duration
	FeeRate              decimal.Decimal // per-side fee applied to arbitrage fills
	Symbol               string
}

func DefaultConfig() Config {
	return Config{
		Risk: risk.DefaultConfig(),
		Circuit: risk.CircuitConfig{
			MaxConsecutiveLosses: 5,
			CooldownPeriod:       30 * time.Minute,
		},
		MinConfidence:        0.3,
		AutoExecuteThreshold: decimal.RequireFromString("0.5"),
		VenueTimeout:         3 * time.Second,
		Symbol:               "BTC/USD",
	}
}

// Signal is an externally generated trade signal
type Signal struct {
	Symbol    string          `json:"symbol"`
	Side      core.Side       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Timeframe string          `json:"timeframe"`
	Time      time.Time       `json:"time"`
}

// ArbitrageFill records one executed buy/sell pair
type ArbitrageFill struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	BuyVenue  string          `json:"buy_venue"`
	SellVenue string          `json:"sell_venue"`
	Amount    decimal.Decimal `json:"amount"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Profit    decimal.Decimal `json:"profit"`
	Time      time.Time       `json:"time"`
}

// Status is a point-in-time view for callers and dashboards
type Status struct {
	Venues             []string                `json:"venues"`
	Balances           map[string]core.Balance `json:"balances"`
	TotalBalance       decimal.Decimal         `json:"total_balance"`
	OpenPositions      []core.Position         `json:"open_positions"`
	ClosedTrades       int                     `json:"closed_trades"`
	RealizedPnL        decimal.Decimal         `json:"realized_pnl"`
	ArbitrageProfit    decimal.Decimal         `json:"arbitrage_profit"`
	ArbitrageCount     int                     `json:"arbitrage_count"`
	ClassifierAccuracy float64                 `json:"classifier_accuracy"`
	CircuitBreaker     risk.CircuitStatus      `json:"circuit_breaker"`
	CurrentSymbol      string                  `json:"current_symbol"`
	LastSignal         *Signal                 `json:"last_signal,omitempty"`
}

type Trader struct {
	mu sync.Mutex

	cfg        Config
	venues     map[string]core.IExchange
	venueNames []string
	ledger     *ledger.Ledger
	classifier core.ISignalClassifier
	recorder   core.ITradeRecorder
	breaker    *risk.CircuitBreaker
	executor   *order.Executor
	publisher  notify.Publisher

	balances      map[string]core.Balance
	fillLog       []ArbitrageFill
	arbProfit     decimal.Decimal
	currentSymbol string
	lastSignal    *Signal
	gaugeSymbols  map[string]struct{}

	logger core.ILogger
}

// New wires a trader. A classifier that also implements core.ITradeRecorder
// is fed entries and outcomes. publisher may be nil.
func New(venues []core.IExchange, classifier core.ISignalClassifier, publisher notify.Publisher, executor *order.Executor, cfg Config, logger core.ILogger) (*Trader, error) {
	if err := cfg.Risk.Validate(); err != nil {
		return nil, err
	}
	if len(venues) == 0 {
		return nil, fmt.Errorf("%w: trader needs at least one venue", apperrors.ErrNoVenue)
	}
	if cfg.VenueTimeout <= 0 {
		cfg.VenueTimeout = 3 * time.Second
	}

	log := logger.WithField("component", "trader")
	t := &Trader{
		cfg:           cfg,
		venues:        make(map[string]core.IExchange, len(venues)),
		ledger:        ledger.New(log),
		classifier:    classifier,
		breaker:       risk.NewCircuitBreaker(cfg.Circuit),
		executor:      executor,
		publisher:     publisher,
		balances:      make(map[string]core.Balance),
		currentSymbol: cfg.Symbol,
		gaugeSymbols:  make(map[string]struct{}),
		logger:        log,
	}
	for _, v := range venues {
		if _, dup := t.venues[v.GetName()]; dup {
			return nil, fmt.Errorf("duplicate venue name %q", v.GetName())
		}
		t.venues[v.GetName()] = v
		t.venueNames = append(t.venueNames, v.GetName())
	}
	sort.Strings(t.venueNames)

	if rec, ok := classifier.(core.ITradeRecorder); ok {
		t.recorder = rec
	}
	if t.executor == nil {
		t.executor = order.NewExecutor(logger)
	}
	t.ledger.OnClose(t.onClose)
	return t, nil
}

// Ledger exposes the live ledger for read-only queries
func (t *Trader) Ledger() *ledger.Ledger { return t.ledger }

// Breaker exposes the circuit breaker so operators can reset it
func (t *Trader) Breaker() *risk.CircuitBreaker { return t.breaker }

// SetSymbol changes the current trading pair
func (t *Trader) SetSymbol(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentSymbol = symbol
	t.logger.Info("Trading pair changed", "symbol", symbol)
}

func (t *Trader) onClose(trade core.ClosedTrade) {
	ctx := context.Background()
	t.breaker.RecordTrade(trade.Profit)
	if t.recorder != nil {
		t.recorder.RecordOutcome(trade)
	}

	metrics := telemetry.GetGlobalMetrics()
	attrs := metric.WithAttributes(
		attribute.String("symbol", trade.Symbol),
		attribute.String("reason", string(trade.ExitReason)),
	)
	metrics.TradesClosedTotal.Add(ctx, 1, attrs)
	metrics.PnLRealizedTotal.Add(ctx, trade.Profit.InexactFloat64(), metric.WithAttributes(attribute.String("symbol", trade.Symbol)))

	if t.publisher != nil {
		t.publisher.Publish(ctx, notify.TradeClosedEvent(trade))
	}

	t.logger.Info("Trade closed",
		"id", trade.ID,
		"symbol", trade.Symbol,
		"venue", trade.Venue,
		"reason", trade.ExitReason,
		"profit", trade.Profit.StringFixed(2),
		"profit_percent", trade.ProfitPercent.StringFixed(2))
}

// RefreshBalances fetches every venue balance. A venue that fails is left out
// of the cache until its next successful refresh.
func (t *Trader) RefreshBalances(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshBalancesLocked(ctx)
}

func (t *Trader) refreshBalancesLocked(ctx context.Context) error {
	metrics := telemetry.GetGlobalMetrics()
	var errs []error
	for _, name := range t.venueNames {
		callCtx, cancel := context.WithTimeout(ctx, t.cfg.VenueTimeout)
		bal, err := t.venues[name].FetchBalance(callCtx)
		cancel()
		if err != nil {
			delete(t.balances, name)
			metrics.VenueFailuresTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("venue", name),
				attribute.String("op", "balance"),
			))
			t.logger.Warn("Balance refresh failed", "venue", name, "error", err)
			errs = append(errs, fmt.Errorf("%w: %s: %w", apperrors.ErrVenueUnavailable, name, err))
			continue
		}
		t.balances[name] = *bal
		metrics.SetBalance(name, bal.Total.InexactFloat64())
	}
	return errors.Join(errs...)
}

func (t *Trader) totalBalanceLocked() decimal.Decimal {
	total := decimal.Zero
	for _, b := range t.balances {
		total = total.Add(b.Total)
	}
	return total
}

func (t *Trader) fetchTicker(ctx context.Context, venue core.IExchange, symbol string) (*core.Ticker, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.cfg.VenueTimeout)
	defer cancel()
	tk, err := venue.FetchTicker(callCtx, symbol)
	if err != nil {
		telemetry.GetGlobalMetrics().VenueFailuresTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("venue", venue.GetName()),
			attribute.String("op", "ticker"),
		))
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrVenueUnavailable, venue.GetName(), err)
	}
	return tk, nil
}

// bestBuyVenueLocked returns the venue with the lowest positive ask
func (t *Trader) bestBuyVenueLocked(ctx context.Context, symbol string) (string, decimal.Decimal, error) {
	var (
		best    string
		bestAsk decimal.Decimal
	)
	for _, name := range t.venueNames {
		tk, err := t.fetchTicker(ctx, t.venues[name], symbol)
		if err != nil {
			t.logger.Warn("Venue skipped for best price", "venue", name, "symbol", symbol, "error", err)
			continue
		}
		if !tk.Ask.IsPositive() {
			continue
		}
		if best == "" || tk.Ask.LessThan(bestAsk) {
			best, bestAsk = name, tk.Ask
		}
	}
	if best == "" {
		return "", decimal.Zero, fmt.Errorf("%w: no venue quotes %s", apperrors.ErrNoVenue, symbol)
	}
	return best, bestAsk, nil
}

func (t *Trader) predict(ctx context.Context, sig Signal) (core.Prediction, error) {
	pred, err := t.classifier.Predict(ctx, core.SignalRequest{
		Symbol:    sig.Symbol,
		Side:      sig.Side,
		Price:     sig.Price,
		Timeframe: sig.Timeframe,
		Time:      sig.Time,
	})
	if err != nil {
		return core.Prediction{}, fmt.Errorf("classifier failed: %w", err)
	}
	if pred.Confidence < t.cfg.MinConfidence {
		return pred, fmt.Errorf("%w: %.2f below %.2f", apperrors.ErrLowConfidence, pred.Confidence, t.cfg.MinConfidence)
	}
	return pred, nil
}

// HandleSignal dispatches a signal by side
func (t *Trader) HandleSignal(ctx context.Context, sig Signal) error {
	switch sig.Side {
	case core.SideBuy:
		_, err := t.ExecuteBuy(ctx, sig)
		return err
	case core.SideSell:
		_, err := t.ExecuteSell(ctx, sig)
		return err
	default:
		return fmt.Errorf("unknown signal side %q", sig.Side)
	}
}

// ExecuteBuy gates, sizes and places a buy on the venue with the lowest ask.
// Any rejection leaves the ledger unchanged.
func (t *Trader) ExecuteBuy(ctx context.Context, sig Signal) (core.Position, error) {
	if sig.Time.IsZero() {
		sig.Time = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pred, err := t.predict(ctx, sig)
	if err != nil {
		return core.Position{}, err
	}
	if err := t.breaker.Allow(); err != nil {
		return core.Position{}, err
	}
	if err := risk.CheckExposure(t.ledger.OpenCount(), t.cfg.Risk).Err(); err != nil {
		return core.Position{}, err
	}

	venueName, ask, err := t.bestBuyVenueLocked(ctx, sig.Symbol)
	if err != nil {
		return core.Position{}, err
	}
	entry := sig.Price
	if !entry.IsPositive() {
		entry = ask
	}

	if len(t.balances) == 0 {
		if err := t.refreshBalancesLocked(ctx); err != nil {
			t.logger.Warn("Partial balance refresh before buy", "error", err)
		}
	}
	stop := risk.DeriveStopLoss(entry, t.cfg.Risk)
	target := risk.DeriveTakeProfit(entry, t.cfg.Risk)
	size, err := risk.SizePosition(t.totalBalanceLocked(), entry, stop, t.cfg.Risk)
	if err != nil {
		return core.Position{}, err
	}
	size = tradingutils.RoundQuantity(size, quantityDecimals)
	cost := size.Mul(entry)
	if free := t.balances[venueName].Free; cost.GreaterThan(free) {
		return core.Position{}, fmt.Errorf("%w: %s needs %s, free %s", apperrors.ErrInsufficientBalance, venueName, cost.StringFixed(2), free.StringFixed(2))
	}

	if _, err := t.executor.Place(ctx, t.venues[venueName], core.OrderRequest{
		Symbol: sig.Symbol,
		Side:   core.SideBuy,
		Amount: size,
		Price:  entry,
	}); err != nil {
		return core.Position{}, err
	}

	pos, err := t.ledger.Open(core.Position{
		Symbol:          sig.Symbol,
		Venue:           venueName,
		Side:            core.SideBuy,
		EntryPrice:      entry,
		Size:            size,
		StopLossPrice:   stop,
		TakeProfitPrice: target,
		EntryTime:       sig.Time,
	})
	if err != nil {
		t.logger.Error("Order filled but ledger rejected position", "venue", venueName, "symbol", sig.Symbol, "error", err)
		return core.Position{}, err
	}
	t.adjustFreeLocked(venueName, cost.Neg())

	if t.recorder != nil {
		t.recorder.RecordTrade(core.ClassifiedTrade{
			ID:         pos.ID,
			Symbol:     sig.Symbol,
			Side:       core.SideBuy,
			Price:      entry,
			Timeframe:  sig.Timeframe,
			Confidence: pred.Confidence,
			Time:       sig.Time,
		})
	}
	last := sig
	t.lastSignal = &last
	t.updatePositionGaugesLocked()

	t.logger.Info("Buy executed",
		"id", pos.ID,
		"venue", venueName,
		"symbol", sig.Symbol,
		"size", size.String(),
		"entry", entry.String(),
		"confidence", pred.Confidence)
	return pos, nil
}

// ExecuteSell closes every open buy position for the signal's symbol at the
// signal price, or the venue price when the signal has none. A position
// whose sell order fails stays open.
func (t *Trader) ExecuteSell(ctx context.Context, sig Signal) ([]core.ClosedTrade, error) {
	if sig.Time.IsZero() {
		sig.Time = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.predict(ctx, sig); err != nil {
		return nil, err
	}

	var targets []core.Position
	for _, p := range t.ledger.OpenPositionsFor(sig.Symbol) {
		if p.Side == core.SideBuy {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		t.logger.Info("No positions to sell", "symbol", sig.Symbol)
		return nil, nil
	}

	var (
		closed []core.ClosedTrade
		errs   []error
	)
	for _, p := range targets {
		trade, err := t.closePositionLocked(ctx, p, sig.Price, sig.Time, core.ExitSignal)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		closed = append(closed, trade)
	}
	last := sig
	t.lastSignal = &last
	return closed, errors.Join(errs...)
}

// CheckRisk closes positions whose venue's last price crossed the stop-loss or take-profit
func (t *Trader) CheckRisk(ctx context.Context) ([]core.ClosedTrade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		closed []core.ClosedTrade
		errs   []error
	)
	for _, p := range t.ledger.OpenPositions() {
		venue, ok := t.venues[p.Venue]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s for position %s", apperrors.ErrNoVenue, p.Venue, p.ID))
			continue
		}
		tk, err := t.fetchTicker(ctx, venue, p.Symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		price := tk.Last
		if !price.IsPositive() {
			price = tk.Bid
		}
		if !price.IsPositive() {
			continue
		}

		var reason core.ExitReason
		switch {
		case p.StopLossPrice.IsPositive() && price.LessThanOrEqual(p.StopLossPrice):
			reason = core.ExitStopLoss
		case p.TakeProfitPrice.IsPositive() && price.GreaterThanOrEqual(p.TakeProfitPrice):
			reason = core.ExitTakeProfit
		default:
			continue
		}

		trade, err := t.closePositionLocked(ctx, p, price, time.Now(), reason)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		closed = append(closed, trade)
	}
	return closed, errors.Join(errs...)
}

func (t *Trader) closePositionLocked(ctx context.Context, p core.Position, price decimal.Decimal, at time.Time, reason core.ExitReason) (core.ClosedTrade, error) {
	venue, ok := t.venues[p.Venue]
	if !ok {
		return core.ClosedTrade{}, fmt.Errorf("%w: %s for position %s", apperrors.ErrNoVenue, p.Venue, p.ID)
	}
	if !price.IsPositive() {
		resolved, err := t.exitPriceLocked(ctx, venue, p)
		if err != nil {
			return core.ClosedTrade{}, err
		}
		price = resolved
	}
	if _, err := t.executor.Place(ctx, venue, core.OrderRequest{
		Symbol: p.Symbol,
		Side:   core.SideSell,
		Amount: p.Size,
		Price:  price,
	}); err != nil {
		return core.ClosedTrade{}, fmt.Errorf("close %s: %w", p.ID, err)
	}

	trade, err := t.ledger.Close(p.ID, price, at, reason)
	if err != nil {
		return core.ClosedTrade{}, err
	}
	t.adjustFreeLocked(p.Venue, p.Size.Mul(price))
	t.updatePositionGaugesLocked()
	return trade, nil
}

// exitPriceLocked prices a close from the position's venue, last then bid.
// No order may go out without a positive price.
func (t *Trader) exitPriceLocked(ctx context.Context, venue core.IExchange, p core.Position) (decimal.Decimal, error) {
	tk, err := t.fetchTicker(ctx, venue, p.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("close %s: %w", p.ID, err)
	}
	price := tk.Last
	if !price.IsPositive() {
		price = tk.Bid
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no exit price for %s on %s", apperrors.ErrInvalidPosition, p.ID, p.Venue)
	}
	return price, nil
}

// ExecuteArbitrage buys on the opportunity's buy venue and sells on its sell
// venue. A shortfall on the buy venue fails before any order is placed. A
// failed sell leg keeps the bought amount as an open position.
func (t *Trader) ExecuteArbitrage(ctx context.Context, opp core.ArbitrageOpportunity) (ArbitrageFill, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buyVenue, ok := t.venues[opp.BuyVenue]
	if !ok {
		return ArbitrageFill{}, fmt.Errorf("%w: %s", apperrors.ErrNoVenue, opp.BuyVenue)
	}
	sellVenue, ok := t.venues[opp.SellVenue]
	if !ok {
		return ArbitrageFill{}, fmt.Errorf("%w: %s", apperrors.ErrNoVenue, opp.SellVenue)
	}
	if !opp.Amount.IsPositive() || !opp.SellPrice.GreaterThan(opp.BuyPrice) {
		return ArbitrageFill{}, fmt.Errorf("invalid opportunity %s %s->%s", opp.Symbol, opp.BuyVenue, opp.SellVenue)
	}

	cost := opp.Cost()
	if free := t.balances[opp.BuyVenue].Free; cost.GreaterThan(free) {
		return ArbitrageFill{}, fmt.Errorf("%w: %s needs %s, free %s", apperrors.ErrInsufficientBalance, opp.BuyVenue, cost.StringFixed(2), free.StringFixed(2))
	}

	if _, err := t.executor.Place(ctx, buyVenue, core.OrderRequest{
		Symbol: opp.Symbol, Side: core.SideBuy, Amount: opp.Amount, Price: opp.BuyPrice,
	}); err != nil {
		return ArbitrageFill{}, err
	}
	t.adjustFreeLocked(opp.BuyVenue, cost.Neg())

	if _, err := t.executor.Place(ctx, sellVenue, core.OrderRequest{
		Symbol: opp.Symbol, Side: core.SideSell, Amount: opp.Amount, Price: opp.SellPrice,
	}); err != nil {
		pos, openErr := t.ledger.Open(core.Position{
			Symbol:          opp.Symbol,
			Venue:           opp.BuyVenue,
			Side:            core.SideBuy,
			EntryPrice:      opp.BuyPrice,
			Size:            opp.Amount,
			StopLossPrice:   risk.DeriveStopLoss(opp.BuyPrice, t.cfg.Risk),
			TakeProfitPrice: risk.DeriveTakeProfit(opp.BuyPrice, t.cfg.Risk),
		})
		if openErr != nil {
			return ArbitrageFill{}, errors.Join(err, openErr)
		}
		t.updatePositionGaugesLocked()
		t.logger.Warn("Arbitrage sell leg failed, holding bought leg",
			"position", pos.ID, "symbol", opp.Symbol, "venue", opp.BuyVenue, "error", err)
		return ArbitrageFill{}, fmt.Errorf("arbitrage sell leg on %s: %w", opp.SellVenue, err)
	}
	t.adjustFreeLocked(opp.SellVenue, opp.Revenue())

	net := tradingutils.CalculateNetProfit(opp.BuyPrice, opp.SellPrice, t.cfg.FeeRate, t.cfg.FeeRate).Mul(opp.Amount)
	fill := ArbitrageFill{
		ID:        fmt.Sprintf("arb-%d", len(t.fillLog)+1),
		Symbol:    opp.Symbol,
		BuyVenue:  opp.BuyVenue,
		SellVenue: opp.SellVenue,
		Amount:    opp.Amount,
		BuyPrice:  opp.BuyPrice,
		SellPrice: opp.SellPrice,
		Profit:    net,
		Time:      time.Now(),
	}
	t.fillLog = append(t.fillLog, fill)
	t.arbProfit = t.arbProfit.Add(net)

	t.logger.Info("Arbitrage executed",
		"symbol", opp.Symbol,
		"buy_venue", opp.BuyVenue,
		"sell_venue", opp.SellVenue,
		"profit", net.StringFixed(4))
	return fill, nil
}

// HandleOpportunities executes every opportunity above the auto-execute threshold
func (t *Trader) HandleOpportunities(ctx context.Context, opps []core.ArbitrageOpportunity) []ArbitrageFill {
	var fills []ArbitrageFill
	for _, o := range opps {
		if !o.ProfitPercent.GreaterThan(t.cfg.AutoExecuteThreshold) {
			continue
		}
		fill, err := t.ExecuteArbitrage(ctx, o)
		if err != nil {
			t.logger.Warn("Arbitrage not executed",
				"symbol", o.Symbol,
				"buy_venue", o.BuyVenue,
				"sell_venue", o.SellVenue,
				"error", err)
			continue
		}
		fills = append(fills, fill)
	}
	return fills
}

// ArbitrageFills returns executed arbitrage pairs in order
func (t *Trader) ArbitrageFills() []ArbitrageFill {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ArbitrageFill(nil), t.fillLog...)
}

func (t *Trader) adjustFreeLocked(venue string, delta decimal.Decimal) {
	b, ok := t.balances[venue]
	if !ok {
		return
	}
	b.Free = b.Free.Add(delta)
	t.balances[venue] = b
}

func (t *Trader) updatePositionGaugesLocked() {
	counts := make(map[string]int64)
	for _, p := range t.ledger.OpenPositions() {
		counts[p.Symbol]++
	}
	metrics := telemetry.GetGlobalMetrics()
	for symbol := range t.gaugeSymbols {
		if _, ok := counts[symbol]; !ok {
			metrics.SetOpenPositions(symbol, 0)
		}
	}
	for symbol, n := range counts {
		t.gaugeSymbols[symbol] = struct{}{}
		metrics.SetOpenPositions(symbol, n)
	}
}

func (t *Trader) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	balances := make(map[string]core.Balance, len(t.balances))
	for k, v := range t.balances {
		balances[k] = v
	}
	st := Status{
		Venues:          append([]string(nil), t.venueNames...),
		Balances:        balances,
		TotalBalance:    t.totalBalanceLocked(),
		OpenPositions:   t.ledger.OpenPositions(),
		ClosedTrades:    len(t.ledger.ClosedTrades()),
		RealizedPnL:     t.ledger.RealizedPnL(),
		ArbitrageProfit: t.arbProfit,
		ArbitrageCount:  len(t.fillLog),
		CircuitBreaker:  t.breaker.Status(),
		CurrentSymbol:   t.currentSymbol,
	}
	if t.recorder != nil {
		st.ClassifierAccuracy = t.recorder.Accuracy()
	}
	if t.lastSignal != nil {
		last := *t.lastSignal
		st.LastSignal = &last
	}
	return st
}

// Snapshot captures open positions, the current symbol and classifier history
func (t *Trader) Snapshot() *core.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := &core.Snapshot{
		Positions:     t.ledger.OpenPositions(),
		CurrentSymbol: t.currentSymbol,
		SavedAt:       time.Now(),
	}
	if t.recorder != nil {
		snap.Classifier = t.recorder.State()
	}
	return snap
}

// Restore replaces open positions and classifier history from a snapshot.
// The ledger is left untouched when the snapshot is invalid.
func (t *Trader) Restore(snap *core.Snapshot) error {
	if snap == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ledger.Restore(snap.Positions); err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}
	if snap.CurrentSymbol != "" {
		t.currentSymbol = snap.CurrentSymbol
	}
	if t.recorder != nil {
		t.recorder.Restore(snap.Classifier)
	}
	t.updatePositionGaugesLocked()
	t.logger.Info("State restored",
		"positions", len(snap.Positions),
		"symbol", t.currentSymbol,
		"saved_at", snap.SavedAt)
	return nil
}

// Package paper implements an in-memory venue with a static price table
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradecore/internal/core"
	"tradecore/pkg/apperrors"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Config describes one paper venue
type Config struct {
	Name             string
	StartingBalance  decimal.Decimal
	PriceSkewPercent decimal.Decimal // shifts every quote, so two paper venues can diverge
	StrictSymbols    bool            // unknown symbols fail instead of using the fallback quote
	Holdings         map[string]decimal.Decimal
}

// DefaultTickers is the built-in price table
func DefaultTickers() map[string]core.Ticker {
	t := func(bid, ask, last string) core.Ticker {
		return core.Ticker{
			Bid:  decimal.RequireFromString(bid),
			Ask:  decimal.RequireFromString(ask),
			Last: decimal.RequireFromString(last),
		}
	}
	return map[string]core.Ticker{
		"BTC/USD":   t("116900", "117100", "117000"),
		"BTC/USDT":  t("116900", "117100", "117000"),
		"ETH/USD":   t("2955", "2965", "2960"),
		"ETH/USDT":  t("2955", "2965", "2960"),
		"SOL/USD":   t("245", "246", "245.5"),
		"MATIC/USD": t("4.18", "4.22", "4.20"),
		"LINK/USD":  t("19.80", "19.90", "19.85"),
		"UNI/USD":   t("8.45", "8.55", "8.50"),
		"AAVE/USD":  t("198.50", "199.50", "199.00"),
		"CRV/USD":   t("0.71", "0.72", "0.715"),
		"SUSHI/USD": t("1.92", "1.94", "1.93"),
		"PENGU/USD": t("0.0285", "0.0287", "0.0286"),
	}
}

var fallbackTicker = core.Ticker{
	Bid:  decimal.NewFromInt(100),
	Ask:  decimal.NewFromInt(101),
	Last: decimal.RequireFromString("100.5"),
}

// Exchange is a paper venue. Buys spend free balance and add holdings; sells
// require holdings.
type Exchange struct {
	mu       sync.Mutex
	cfg      Config
	free     decimal.Decimal
	holdings map[string]decimal.Decimal
	tickers  map[string]core.Ticker
	orderSeq int64
	failures []error
	now      func() time.Time
}

func New(cfg Config) *Exchange {
	if cfg.Name == "" {
		cfg.Name = "paper"
	}
	if cfg.StartingBalance.IsZero() {
		cfg.StartingBalance = decimal.NewFromInt(10000)
	}
	holdings := make(map[string]decimal.Decimal, len(cfg.Holdings))
	for symbol, qty := range cfg.Holdings {
		if qty.IsPositive() {
			holdings[symbol] = qty
		}
	}
	return &Exchange{
		cfg:      cfg,
		free:     cfg.StartingBalance,
		holdings: holdings,
		tickers:  DefaultTickers(),
		now:      time.Now,
	}
}

func (e *Exchange) GetName() string { return e.cfg.Name }

// SetTicker overrides the quote for a symbol
func (e *Exchange) SetTicker(symbol string, bid, ask, last decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickers[symbol] = core.Ticker{Bid: bid, Ask: ask, Last: last}
}

// FailNext makes the next calls fail with err, one call per queued error
func (e *Exchange) FailNext(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		e.failures = append(e.failures, err)
	}
}

func (e *Exchange) popFailure() error {
	if len(e.failures) == 0 {
		return nil
	}
	err := e.failures[0]
	e.failures = e.failures[1:]
	return err
}

func (e *Exchange) ticker(symbol string) (core.Ticker, error) {
	t, ok := e.tickers[symbol]
	if !ok {
		if e.cfg.StrictSymbols {
			return core.Ticker{}, fmt.Errorf("%w: %s on %s", apperrors.ErrInvalidSymbol, symbol, e.cfg.Name)
		}
		t = fallbackTicker
	}
	if !e.cfg.PriceSkewPercent.IsZero() {
		f := decimal.NewFromInt(1).Add(e.cfg.PriceSkewPercent.Div(hundred))
		t.Bid, t.Ask, t.Last = t.Bid.Mul(f), t.Ask.Mul(f), t.Last.Mul(f)
	}
	t.Symbol = symbol
	t.Timestamp = e.now()
	return t, nil
}

func (e *Exchange) FetchTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.popFailure(); err != nil {
		return nil, err
	}
	t, err := e.ticker(symbol)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FetchBalance reports free cash and total equity with holdings marked at last price
func (e *Exchange) FetchBalance(ctx context.Context) (*core.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.popFailure(); err != nil {
		return nil, err
	}
	total := e.free
	for symbol, qty := range e.holdings {
		if t, err := e.ticker(symbol); err == nil {
			total = total.Add(qty.Mul(t.Last))
		}
	}
	return &core.Balance{Total: total, Free: e.free}, nil
}

func (e *Exchange) CreateOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() || !req.Price.IsPositive() {
		return nil, fmt.Errorf("invalid order amount %s at %s", req.Amount, req.Price)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.popFailure(); err != nil {
		return nil, err
	}

	cost := req.Amount.Mul(req.Price)
	switch req.Side {
	case core.SideBuy:
		if cost.GreaterThan(e.free) {
			return nil, fmt.Errorf("%w: need %s, free %s", apperrors.ErrInsufficientBalance, cost.StringFixed(2), e.free.StringFixed(2))
		}
		e.free = e.free.Sub(cost)
		e.holdings[req.Symbol] = e.holdings[req.Symbol].Add(req.Amount)
	case core.SideSell:
		held := e.holdings[req.Symbol]
		if held.LessThan(req.Amount) {
			return nil, fmt.Errorf("%w: hold %s %s, selling %s", apperrors.ErrInsufficientPosition, held, req.Symbol, req.Amount)
		}
		if rest := held.Sub(req.Amount); rest.IsZero() {
			delete(e.holdings, req.Symbol)
		} else {
			e.holdings[req.Symbol] = rest
		}
		e.free = e.free.Add(cost)
	default:
		return nil, fmt.Errorf("unknown order side %q", req.Side)
	}

	e.orderSeq++
	return &core.Order{
		ID:        fmt.Sprintf("%s-%d", e.cfg.Name, e.orderSeq),
		Venue:     e.cfg.Name,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Amount:    req.Amount,
		Price:     req.Price,
		Status:    "filled",
		CreatedAt: e.now(),
	}, nil
}

// Holding returns the paper quantity held for a symbol
func (e *Exchange) Holding(symbol string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.holdings[symbol]
}

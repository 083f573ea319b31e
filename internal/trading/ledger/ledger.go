// Package ledger is the single source of truth for open and closed positions
package ledger

import (
	"fmt"
	"sync"
	"time"

	"tradecore/internal/core"
	"tradecore/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Ledger records positions. All mutation goes through Open and Close and is
// serialized by a single mutex.
type Ledger struct {
	mu        sync.RWMutex
	open      map[string]*core.Position
	openOrder []string
	closedIDs map[string]struct{}
	closed    []core.ClosedTrade
	realized  decimal.Decimal

	callbacks  []func(core.ClosedTrade)
	callbackMu sync.RWMutex

	logger core.ILogger
}

// New creates an empty ledger
func New(logger core.ILogger) *Ledger {
	return &Ledger{
		open:      make(map[string]*core.Position),
		closedIDs: make(map[string]struct{}),
		logger:    logger.WithField("component", "ledger"),
	}
}

// OnClose registers a callback invoked after every successful Close
func (l *Ledger) OnClose(cb func(core.ClosedTrade)) {
	l.callbackMu.Lock()
	defer l.callbackMu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// Open records a new open position. Cost is derived from Size and EntryPrice.
// An empty ID is replaced with a fresh UUID.
func (l *Ledger) Open(p core.Position) (core.Position, error) {
	if !p.Size.IsPositive() {
		return core.Position{}, fmt.Errorf("%w: size must be positive, got %s", apperrors.ErrInvalidPosition, p.Size)
	}
	if !p.EntryPrice.IsPositive() {
		return core.Position{}, fmt.Errorf("%w: entry price must be positive, got %s", apperrors.ErrInvalidPosition, p.EntryPrice)
	}
	if p.Side == "" {
		p.Side = core.SideBuy
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.EntryTime.IsZero() {
		p.EntryTime = time.Now()
	}
	p.Cost = p.Size.Mul(p.EntryPrice)
	p.Status = core.StatusOpen
	p.ExitPrice, p.ExitTime, p.Profit, p.ProfitPercent, p.ExitReason = nil, nil, nil, nil, ""

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.open[p.ID]; ok {
		return core.Position{}, fmt.Errorf("%w: %s", apperrors.ErrDuplicatePosition, p.ID)
	}
	if _, ok := l.closedIDs[p.ID]; ok {
		return core.Position{}, fmt.Errorf("%w: %s", apperrors.ErrDuplicatePosition, p.ID)
	}

	stored := p
	l.open[p.ID] = &stored
	l.openOrder = append(l.openOrder, p.ID)

	l.logger.Debug("Position opened",
		"id", p.ID,
		"symbol", p.Symbol,
		"venue", p.Venue,
		"size", p.Size.String(),
		"entry", p.EntryPrice.String())

	return p, nil
}

// Close closes an open position at exitPrice. Unknown and already closed ids
// fail with ErrUnknownPosition and leave the ledger untouched.
func (l *Ledger) Close(id string, exitPrice decimal.Decimal, exitTime time.Time, reason core.ExitReason) (core.ClosedTrade, error) {
	l.mu.Lock()
	p, ok := l.open[id]
	if !ok {
		l.mu.Unlock()
		return core.ClosedTrade{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownPosition, id)
	}
	if !exitPrice.IsPositive() {
		l.mu.Unlock()
		return core.ClosedTrade{}, fmt.Errorf("%w: exit price must be positive, got %s", apperrors.ErrInvalidPosition, exitPrice)
	}
	if reason == "" {
		reason = core.ExitManual
	}

	profit := exitPrice.Sub(p.EntryPrice).Mul(p.Size)
	if p.Side == core.SideSell {
		profit = profit.Neg()
	}
	profitPercent := profit.Div(p.Cost).Mul(hundred)

	trade := core.ClosedTrade{
		ID:            p.ID,
		Symbol:        p.Symbol,
		Venue:         p.Venue,
		Side:          p.Side,
		EntryPrice:    p.EntryPrice,
		ExitPrice:     exitPrice,
		Size:          p.Size,
		Cost:          p.Cost,
		Profit:        profit,
		ProfitPercent: profitPercent,
		EntryTime:     p.EntryTime,
		ExitTime:      exitTime,
		ExitReason:    reason,
	}

	delete(l.open, id)
	l.removeFromOrder(id)
	l.closedIDs[id] = struct{}{}
	l.closed = append(l.closed, trade)
	l.realized = l.realized.Add(profit)
	l.mu.Unlock()

	l.logger.Info("Position closed",
		"id", id,
		"symbol", trade.Symbol,
		"reason", string(reason),
		"profit", profit.StringFixed(4),
		"profit_percent", profitPercent.StringFixed(2))

	l.callbackMu.RLock()
	callbacks := l.callbacks
	l.callbackMu.RUnlock()
	for _, cb := range callbacks {
		cb(trade)
	}

	return trade, nil
}

func (l *Ledger) removeFromOrder(id string) {
	for i, v := range l.openOrder {
		if v == id {
			l.openOrder = append(l.openOrder[:i], l.openOrder[i+1:]...)
			return
		}
	}
}

// Get returns a copy of an open position
func (l *Ledger) Get(id string) (core.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.open[id]
	if !ok {
		return core.Position{}, false
	}
	return *p, true
}

// OpenPositions returns copies of all open positions in opening order
func (l *Ledger) OpenPositions() []core.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]core.Position, 0, len(l.openOrder))
	for _, id := range l.openOrder {
		res = append(res, *l.open[id])
	}
	return res
}

// OpenPositionsFor returns open positions for a symbol in opening order
func (l *Ledger) OpenPositionsFor(symbol string) []core.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var res []core.Position
	for _, id := range l.openOrder {
		if p := l.open[id]; p.Symbol == symbol {
			res = append(res, *p)
		}
	}
	return res
}

func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.open)
}

// TotalExposure is the sum of cost over open positions
func (l *Ledger) TotalExposure() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, p := range l.open {
		total = total.Add(p.Cost)
	}
	return total
}

// ClosedTrades returns closed trades in closing order
func (l *Ledger) ClosedTrades() []core.ClosedTrade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]core.ClosedTrade, len(l.closed))
	copy(res, l.closed)
	return res
}

func (l *Ledger) RealizedPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realized
}

// Reset drops every open and closed record
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = make(map[string]*core.Position)
	l.openOrder = nil
	l.closedIDs = make(map[string]struct{})
	l.closed = nil
	l.realized = decimal.Zero
}

// Restore replaces the open set with the given positions. Closed history is kept.
// Positions that are not open are skipped.
func (l *Ledger) Restore(positions []core.Position) error {
	open := make(map[string]*core.Position, len(positions))
	order := make([]string, 0, len(positions))
	for _, p := range positions {
		if p.Status != "" && p.Status != core.StatusOpen {
			continue
		}
		if p.ID == "" || !p.Size.IsPositive() || !p.EntryPrice.IsPositive() {
			return fmt.Errorf("%w: cannot restore position %q", apperrors.ErrInvalidPosition, p.ID)
		}
		if _, dup := open[p.ID]; dup {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicatePosition, p.ID)
		}
		if p.Side == "" {
			p.Side = core.SideBuy
		}
		p.Status = core.StatusOpen
		p.Cost = p.Size.Mul(p.EntryPrice)
		stored := p
		open[p.ID] = &stored
		order = append(order, p.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = open
	l.openOrder = order
	l.logger.Info("Ledger restored", "open_positions", len(order))
	return nil
}

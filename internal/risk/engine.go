// Package risk implements position sizing, stop derivation and exposure gating
package risk

import (
	"fmt"

	"tradecore/pkg/apperrors"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LotBand maps a price band to its minimum lot.
// A price strictly below Below uses MinLot. A zero Below marks the catch-all band.
type LotBand struct {
	Below  decimal.Decimal
	MinLot decimal.Decimal
}

// Config holds the risk budget. Percent fields are in percent units (2 means 2%).
type Config struct {
	RiskPerTradePercent decimal.Decimal
	StopLossPercent     decimal.Decimal
	TakeProfitPercent   decimal.Decimal
	MaxPositions        int
	MaxPositionPercent  decimal.Decimal
	LotBands            []LotBand
}

// DefaultLotBands returns the seven price bands used for sub-economic trades
func DefaultLotBands() []LotBand {
	return []LotBand{
		{Below: decimal.RequireFromString("0.01"), MinLot: decimal.NewFromInt(10000)},
		{Below: decimal.RequireFromString("0.1"), MinLot: decimal.NewFromInt(1000)},
		{Below: decimal.NewFromInt(1), MinLot: decimal.NewFromInt(100)},
		{Below: decimal.NewFromInt(10), MinLot: decimal.NewFromInt(10)},
		{Below: decimal.NewFromInt(100), MinLot: decimal.NewFromInt(1)},
		{Below: decimal.NewFromInt(1000), MinLot: decimal.RequireFromString("0.1")},
		{Below: decimal.Zero, MinLot: decimal.RequireFromString("0.01")},
	}
}

// DefaultConfig returns the live trading defaults
func DefaultConfig() Config {
	return Config{
		RiskPerTradePercent: decimal.NewFromInt(2),
		StopLossPercent:     decimal.NewFromInt(3),
		TakeProfitPercent:   decimal.NewFromInt(6),
		MaxPositions:        5,
		MaxPositionPercent:  decimal.NewFromInt(10),
		LotBands:            DefaultLotBands(),
	}
}

// Validate checks the config is usable for sizing
func (c Config) Validate() error {
	if !c.RiskPerTradePercent.IsPositive() || c.RiskPerTradePercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: risk per trade must be in (0, 100], got %s", apperrors.ErrInvalidRiskParameters, c.RiskPerTradePercent)
	}
	if !c.StopLossPercent.IsPositive() || c.StopLossPercent.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("%w: stop loss must be in (0, 100), got %s", apperrors.ErrInvalidRiskParameters, c.StopLossPercent)
	}
	if c.TakeProfitPercent.IsNegative() {
		return fmt.Errorf("%w: take profit must not be negative", apperrors.ErrInvalidRiskParameters)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("%w: max positions must be positive", apperrors.ErrInvalidRiskParameters)
	}
	if !c.MaxPositionPercent.IsPositive() || c.MaxPositionPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: max position percent must be in (0, 100], got %s", apperrors.ErrInvalidRiskParameters, c.MaxPositionPercent)
	}
	return validateLotBands(c.LotBands)
}

func validateLotBands(bands []LotBand) error {
	for i, b := range bands {
		if b.MinLot.IsNegative() {
			return fmt.Errorf("%w: lot band %d has negative minimum lot", apperrors.ErrInvalidRiskParameters, i)
		}
		last := i == len(bands)-1
		if b.Below.IsZero() && !last {
			return fmt.Errorf("%w: only the last lot band may be open-ended", apperrors.ErrInvalidRiskParameters)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		if !b.Below.IsZero() && !b.Below.GreaterThan(prev.Below) {
			return fmt.Errorf("%w: lot band %d price bound must increase", apperrors.ErrInvalidRiskParameters, i)
		}
		if b.MinLot.GreaterThan(prev.MinLot) {
			return fmt.Errorf("%w: lot band %d minimum lot must not exceed a cheaper band's", apperrors.ErrInvalidRiskParameters, i)
		}
	}
	return nil
}

// MinLotFor returns the minimum lot for a unit price.
//
// The floor is applied after the exposure cap, so for cheap symbols the final
// size can carry more dollar risk than RiskPerTradePercent and a larger cost
// than MaxPositionPercent allows. This is accepted behavior.
func (c Config) MinLotFor(price decimal.Decimal) decimal.Decimal {
	for _, b := range c.LotBands {
		if b.Below.IsZero() || price.LessThan(b.Below) {
			return b.MinLot
		}
	}
	return decimal.Zero
}

// SizePosition sizes a position so that hitting the stop loses RiskPerTradePercent
// of balance, capped at MaxPositionPercent of balance and floored at the band's minimum lot.
func SizePosition(balance, entryPrice, stopLossPrice decimal.Decimal, cfg Config) (decimal.Decimal, error) {
	if !balance.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: balance must be positive, got %s", apperrors.ErrInvalidRiskParameters, balance)
	}
	if !entryPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: entry price must be positive, got %s", apperrors.ErrInvalidRiskParameters, entryPrice)
	}
	stopDistance := entryPrice.Sub(stopLossPrice).Abs()
	if !stopDistance.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: zero stop distance at %s", apperrors.ErrInvalidRiskParameters, entryPrice)
	}

	riskAmount := balance.Mul(cfg.RiskPerTradePercent).Div(hundred)
	size := riskAmount.Div(stopDistance)

	maxPositionValue := balance.Mul(cfg.MaxPositionPercent).Div(hundred)
	maxSize := maxPositionValue.Div(entryPrice)
	size = decimal.Min(size, maxSize)

	return decimal.Max(size, cfg.MinLotFor(entryPrice)), nil
}

// DeriveStopLoss returns the stop-loss price below entry for a long
func DeriveStopLoss(entryPrice decimal.Decimal, cfg Config) decimal.Decimal {
	return entryPrice.Mul(decimal.NewFromInt(1).Sub(cfg.StopLossPercent.Div(hundred)))
}

// DeriveTakeProfit returns the take-profit price above entry for a long
func DeriveTakeProfit(entryPrice decimal.Decimal, cfg Config) decimal.Decimal {
	return entryPrice.Mul(decimal.NewFromInt(1).Add(cfg.TakeProfitPercent.Div(hundred)))
}

// Decision is the outcome of an exposure check
type Decision struct {
	Allowed bool
	Reason  error
}

// Err returns the rejection reason, nil when allowed
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

// CheckExposure gates new buys on the number of open positions
func CheckExposure(openPositionCount int, cfg Config) Decision {
	if openPositionCount >= cfg.MaxPositions {
		return Decision{Allowed: false, Reason: apperrors.ErrMaxPositionsReached}
	}
	return Decision{Allowed: true}
}

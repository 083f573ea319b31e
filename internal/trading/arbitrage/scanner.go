// Package arbitrage detects and ranks cross-venue price discrepancies
package arbitrage

import (
	"sort"
	"strings"

	"tradecore/internal/core"
	"tradecore/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// DefaultUniverse is the symbol set scanned when none is configured
func DefaultUniverse() []string {
	return []string{
		"BTC/USD", "ETH/USD", "BTC/USDT", "ETH/USDT",
		"SOL/USD", "MATIC/USD", "LINK/USD", "UNI/USD",
		"AAVE/USD", "CRV/USD", "SUSHI/USD", "PENGU/USD",
	}
}

// DefaultAmounts maps a base asset to its trade amount. The table keeps
// dollar exposure roughly comparable across very different unit prices.
func DefaultAmounts() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"BTC":   decimal.RequireFromString("0.01"),
		"ETH":   decimal.RequireFromString("0.1"),
		"SOL":   decimal.NewFromInt(1),
		"AAVE":  decimal.NewFromInt(2),
		"LINK":  decimal.NewFromInt(10),
		"UNI":   decimal.NewFromInt(10),
		"MATIC": decimal.NewFromInt(100),
		"CRV":   decimal.NewFromInt(100),
		"SUSHI": decimal.NewFromInt(100),
		"PENGU": decimal.NewFromInt(1000),
	}
}

// ScannerConfig is the per-symbol amount table
type ScannerConfig struct {
	Amounts       map[string]decimal.Decimal
	DefaultAmount decimal.Decimal
}

// DefaultScannerConfig returns the stock amount table
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Amounts:       DefaultAmounts(),
		DefaultAmount: decimal.RequireFromString("0.01"),
	}
}

// Scanner is a pure transform from a quote snapshot to ranked opportunities
type Scanner struct {
	cfg ScannerConfig
}

func NewScanner(cfg ScannerConfig) *Scanner {
	return &Scanner{cfg: cfg}
}

// AmountFor looks the symbol up by full name, then by base asset
func (s *Scanner) AmountFor(symbol string) decimal.Decimal {
	if a, ok := s.cfg.Amounts[symbol]; ok {
		return a
	}
	base, _, _ := strings.Cut(symbol, "/")
	if a, ok := s.cfg.Amounts[base]; ok {
		return a
	}
	return s.cfg.DefaultAmount
}

// Scan compares every ordered venue pair for each symbol in the universe and
// emits an opportunity when the sell venue's bid is above the buy venue's ask.
// Venues without a valid quote for a symbol are skipped. A symbol listed more
// than once is scanned once.
func (s *Scanner) Scan(quotes core.QuoteSnapshot, universe []string) []core.ArbitrageOpportunity {
	venues := make([]string, 0, len(quotes))
	for v := range quotes {
		venues = append(venues, v)
	}
	sort.Strings(venues)

	var opps []core.ArbitrageOpportunity
	seen := make(map[string]struct{}, len(universe))
	for _, symbol := range universe {
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		amount := s.AmountFor(symbol)
		if !amount.IsPositive() {
			continue
		}

		for _, buyVenue := range venues {
			buy, ok := quotes[buyVenue][symbol]
			if !ok || !buy.Valid() {
				continue
			}
			for _, sellVenue := range venues {
				if sellVenue == buyVenue {
					continue
				}
				sell, ok := quotes[sellVenue][symbol]
				if !ok || !sell.Valid() {
					continue
				}

				spread := sell.Bid.Sub(buy.Ask)
				if !spread.IsPositive() {
					continue
				}
				opps = append(opps, core.ArbitrageOpportunity{
					Symbol:         symbol,
					BuyVenue:       buyVenue,
					SellVenue:      sellVenue,
					BuyPrice:       buy.Ask,
					SellPrice:      sell.Bid,
					Amount:         amount,
					ProfitPercent:  tradingutils.PercentChange(buy.Ask, sell.Bid),
					ProfitAbsolute: spread.Mul(amount),
				})
			}
		}
	}

	SortOpportunities(opps)
	return opps
}

// SortOpportunities orders by profit percent desc, profit absolute desc, then
// symbol, buy venue and sell venue ascending.
func SortOpportunities(opps []core.ArbitrageOpportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if c := a.ProfitPercent.Cmp(b.ProfitPercent); c != 0 {
			return c > 0
		}
		if c := a.ProfitAbsolute.Cmp(b.ProfitAbsolute); c != 0 {
			return c > 0
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.BuyVenue != b.BuyVenue {
			return a.BuyVenue < b.BuyVenue
		}
		return a.SellVenue < b.SellVenue
	})
}

// Above filters opportunities whose profit percent is strictly above threshold
func Above(opps []core.ArbitrageOpportunity, threshold decimal.Decimal) []core.ArbitrageOpportunity {
	var res []core.ArbitrageOpportunity
	for _, o := range opps {
		if o.ProfitPercent.GreaterThan(threshold) {
			res = append(res, o)
		}
	}
	return res
}

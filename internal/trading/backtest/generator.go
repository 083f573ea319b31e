package backtest

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// TimeframeDuration maps a timeframe label to a bar spacing, defaulting to 1h
func TimeframeDuration(timeframe string) time.Duration {
	if d, ok := timeframes[timeframe]; ok {
		return d
	}
	return time.Hour
}

// PriceGenerator produces a seeded random walk of bars. The same seed yields
// the same series.
type PriceGenerator struct {
	rng *rand.Rand
}

func NewPriceGenerator(seed uint64) *PriceGenerator {
	return &PriceGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// StartPrice is the first close for a symbol's walk
func StartPrice(symbol string) float64 {
	if strings.Contains(symbol, "BTC") {
		return 45000
	}
	return 2500
}

// Generate walks from start to end inclusive, moving at most 1% per bar
func (g *PriceGenerator) Generate(symbol, timeframe string, start, end time.Time) []Bar {
	step := TimeframeDuration(timeframe)
	price := StartPrice(symbol)
	var (
		bars []Bar
		up   = decimal.RequireFromString("1.01")
		down = decimal.RequireFromString("0.99")
	)
	for t := start; !t.After(end); t = t.Add(step) {
		price *= 1 + (g.rng.Float64()-0.5)*0.02
		c := decimal.NewFromFloat(price).Round(8)
		bars = append(bars, Bar{
			Time:   t,
			Open:   c,
			High:   c.Mul(up),
			Low:    c.Mul(down),
			Close:  c,
			Volume: g.rng.Float64() * 1_000_000,
		})
	}
	return bars
}

// FlatSeries returns n bars with an unchanging price
func FlatSeries(price decimal.Decimal, start time.Time, step time.Duration, n int) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{Time: start.Add(time.Duration(i) * step), Open: price, High: price, Low: price, Close: price}
	}
	return bars
}

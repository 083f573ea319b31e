package performance

import (
	"math"
	"testing"
	"time"

	"tradecore/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func trade(profit float64) core.ClosedTrade {
	return core.ClosedTrade{Profit: decimal.NewFromFloat(profit)}
}

func curve(balances ...float64) []core.EquityPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]core.EquityPoint, len(balances))
	for i, b := range balances {
		pts[i] = core.EquityPoint{Time: start.Add(time.Duration(i) * time.Hour), Balance: decimal.NewFromFloat(b)}
	}
	return pts
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, Metrics{}, Compute(nil, nil))
	assert.Equal(t, Metrics{}, Compute([]core.ClosedTrade{}, []core.EquityPoint{}))
	assert.Equal(t, Metrics{}, Compute(nil, curve(10000, 9000)), "no trades means no metrics")
}

func TestCompute_Mixed(t *testing.T) {
	trades := []core.ClosedTrade{trade(100), trade(-50), trade(200), trade(-25), trade(0)}
	m := Compute(trades, curve(10000, 10100, 10050, 10250, 10225, 10225))

	assert.Equal(t, 5, m.TotalTrades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 3, m.Losses, "zero-profit trades are not wins")
	assert.InDelta(t, 40.0, m.WinRate, 1e-9)
	assert.InDelta(t, 300.0/75.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 45.0, m.AvgTrade, 1e-9)
	assert.InDelta(t, 200.0, m.BestTrade, 1e-9)
	assert.InDelta(t, -50.0, m.WorstTrade, 1e-9)
	assert.InDelta(t, 150.0, m.AvgWin, 1e-9)
	assert.InDelta(t, 25.0, m.AvgLoss, 1e-9)
	assert.InDelta(t, 225.0, m.TotalProfit, 1e-9)
	assert.InDelta(t, 2.25, m.TotalProfitPercent, 1e-9)

	// 10100 -> 10050 is deeper than 10250 -> 10225
	assert.InDelta(t, 50.0/10100.0*100, m.MaxDrawdown, 1e-9)
}

func TestCompute_ProfitFactorWithoutLosses(t *testing.T) {
	m := Compute([]core.ClosedTrade{trade(10), trade(15)}, curve(1000, 1010, 1025))
	assert.InDelta(t, 25.0, m.ProfitFactor, 1e-9)
	assert.Equal(t, 0.0, m.AvgLoss)
	assert.Equal(t, 0.0, m.MaxDrawdown)
}

func TestMaxDrawdown_RunningPeak(t *testing.T) {
	dd := MaxDrawdown([]float64{100, 120, 90, 130, 104})
	// 120 -> 90 is 25%, 130 -> 104 is 20%
	assert.InDelta(t, 25.0, dd, 1e-9)
	assert.Equal(t, 0.0, MaxDrawdown(nil))
	assert.Equal(t, 0.0, MaxDrawdown([]float64{100, 100, 100}))
}

func TestSharpe(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe([]float64{100}))
	assert.Equal(t, 0.0, Sharpe([]float64{100, 100, 100}), "flat curve has zero stddev")

	// returns +10%, -10% => mean 0
	assert.InDelta(t, 0.0, Sharpe([]float64{100, 110, 99}), 1e-9)

	balances := []float64{100, 110, 121, 127.05}
	r := []float64{0.1, 0.1, 0.05}
	mean := (r[0] + r[1] + r[2]) / 3
	var v float64
	for _, x := range r {
		v += (x - mean) * (x - mean)
	}
	want := mean / math.Sqrt(v/3) * math.Sqrt(252)
	assert.InDelta(t, want, Sharpe(balances), 1e-6)
}

func TestCompute_SingleEquityPoint(t *testing.T) {
	m := Compute([]core.ClosedTrade{trade(50)}, curve(1000))
	assert.InDelta(t, 50.0, m.TotalProfit, 1e-9)
	assert.InDelta(t, 5.0, m.TotalProfitPercent, 1e-9)
	assert.Equal(t, 0.0, m.SharpeRatio)
}

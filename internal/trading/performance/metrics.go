// Package performance summarizes a closed-trade sequence and equity curve
package performance

import (
	"math"

	"tradecore/internal/core"
)

// AnnualizationFactor scales per-period Sharpe to a yearly figure
const AnnualizationFactor = 252

// Metrics is the statistical summary of a run
type Metrics struct {
	TotalTrades        int     `json:"total_trades"`
	Wins               int     `json:"wins"`
	Losses             int     `json:"losses"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	AvgTrade           float64 `json:"avg_trade"`
	BestTrade          float64 `json:"best_trade"`
	WorstTrade         float64 `json:"worst_trade"`
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"`
	TotalProfit        float64 `json:"total_profit"`
	TotalProfitPercent float64 `json:"total_profit_percent"`
}

// Compute derives Metrics. It is pure; zero trades yield the zero value.
func Compute(trades []core.ClosedTrade, equity []core.EquityPoint) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	var m Metrics
	m.TotalTrades = len(trades)

	var grossWins, grossLosses, sum float64
	m.BestTrade = math.Inf(-1)
	m.WorstTrade = math.Inf(1)
	for _, t := range trades {
		p := t.Profit.InexactFloat64()
		sum += p
		if p > 0 {
			m.Wins++
			grossWins += p
		} else if p < 0 {
			grossLosses += -p
		}
		m.BestTrade = math.Max(m.BestTrade, p)
		m.WorstTrade = math.Min(m.WorstTrade, p)
	}
	m.Losses = m.TotalTrades - m.Wins

	m.WinRate = float64(m.Wins) / float64(m.TotalTrades) * 100
	if grossLosses == 0 {
		m.ProfitFactor = grossWins
	} else {
		m.ProfitFactor = grossWins / grossLosses
	}
	m.AvgTrade = sum / float64(m.TotalTrades)
	if m.Wins > 0 {
		m.AvgWin = grossWins / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = grossLosses / float64(m.Losses)
	}

	balances := make([]float64, len(equity))
	for i, p := range equity {
		balances[i] = p.Balance.InexactFloat64()
	}
	m.MaxDrawdown = MaxDrawdown(balances)
	m.SharpeRatio = Sharpe(balances)

	if len(balances) >= 2 {
		first, last := balances[0], balances[len(balances)-1]
		m.TotalProfit = last - first
		if first != 0 {
			m.TotalProfitPercent = m.TotalProfit / first * 100
		}
	} else {
		m.TotalProfit = sum
		if len(balances) == 1 && balances[0] != 0 {
			m.TotalProfitPercent = sum / balances[0] * 100
		}
	}

	return m
}

// MaxDrawdown walks the curve with a running peak and returns the deepest
// decline as a percent of that peak.
func MaxDrawdown(balances []float64) float64 {
	if len(balances) == 0 {
		return 0
	}
	peak := balances[0]
	maxDD := 0.0
	for _, b := range balances {
		if b > peak {
			peak = b
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - b) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Sharpe annualizes mean/stddev of consecutive simple returns.
// Stddev is the population form; a flat series returns 0.
func Sharpe(balances []float64) float64 {
	if len(balances) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(balances)-1)
	for i := 1; i < len(balances); i++ {
		prev := balances[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (balances[i]-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(AnnualizationFactor)
}

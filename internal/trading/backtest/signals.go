package backtest

import (
	"iter"
	"time"

	"tradecore/internal/core"
	"tradecore/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

const (
	// SignalWindow is the number of trailing bars a signal is derived from
	SignalWindow = 20
	// RSIPeriod is the RSI lookback in price changes
	RSIPeriod = 14

	momentumSpan = 5
	oversold     = 30.0
	overbought   = 70.0
)

// Bar is one OHLCV candle
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume float64         `json:"volume"`
}

// Signal is a buy or sell candidate at a bar close
type Signal struct {
	Index     int
	Symbol    string
	Side      core.Side
	Price     decimal.Decimal
	Time      time.Time
	Timeframe string
	Momentum  float64
	RSI       float64
}

// Signals lazily derives momentum/RSI signals. Bar i is evaluated against the
// trailing window bars[i-SignalWindow:i].
func Signals(bars []Bar, symbol, timeframe string) iter.Seq[Signal] {
	return func(yield func(Signal) bool) {
		for i := SignalWindow; i < len(bars); i++ {
			closes := closesOf(bars[i-SignalWindow : i])
			mom := Momentum(closes)
			rsi := RSI(closes, RSIPeriod)

			var side core.Side
			switch {
			case mom > 0 && rsi < oversold:
				side = core.SideBuy
			case mom < 0 && rsi > overbought:
				side = core.SideSell
			default:
				continue
			}

			sig := Signal{
				Index:     i,
				Symbol:    symbol,
				Side:      side,
				Price:     bars[i].Close,
				Time:      bars[i].Time,
				Timeframe: timeframe,
				Momentum:  mom,
				RSI:       rsi,
			}
			if !yield(sig) {
				return
			}
		}
	}
}

func closesOf(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

// Momentum is the relative change between the mean of the last 5 closes and
// the mean of the 5 before them. Fewer than 10 closes yield 0.
func Momentum(closes []float64) float64 {
	n := len(closes)
	if n < 2*momentumSpan {
		return 0
	}
	recent := tradingutils.Mean(closes[n-momentumSpan:])
	older := tradingutils.Mean(closes[n-2*momentumSpan : n-momentumSpan])
	if older == 0 {
		return 0
	}
	return (recent - older) / older
}

// RSI uses Wilder's average gain over average loss across the last period
// changes. It returns 50 without enough history and 100 when there were no losses.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	tail := closes[len(closes)-period-1:]
	var gains, losses float64
	for i := 1; i < len(tail); i++ {
		change := tail[i] - tail[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

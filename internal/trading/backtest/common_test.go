package backtest

import (
	"time"

	"tradecore/internal/core"

	"github.com/shopspring/decimal"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, fields ...interface{})               {}
func (m *mockLogger) Info(msg string, fields ...interface{})                {}
func (m *mockLogger) Warn(msg string, fields ...interface{})                {}
func (m *mockLogger) Error(msg string, fields ...interface{})               {}
func (m *mockLogger) Fatal(msg string, fields ...interface{})               {}
func (m *mockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *mockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

// barsOf builds hourly bars whose high and low equal the close
func barsOf(closes ...float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		p := decimal.NewFromFloat(c)
		bars[i] = Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: p, High: p, Low: p, Close: p}
	}
	return bars
}

// repeat returns n copies of v
func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func series(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func sig(index int, side core.Side, price string) Signal {
	return Signal{
		Index:     index,
		Symbol:    "ETH/USD",
		Side:      side,
		Price:     d(price),
		Time:      t0.Add(time.Duration(index) * time.Hour),
		Timeframe: "1h",
	}
}

func signalsOf(sigs ...Signal) func(func(Signal) bool) {
	return func(yield func(Signal) bool) {
		for _, s := range sigs {
			if !yield(s) {
				return
			}
		}
	}
}

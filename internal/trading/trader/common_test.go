package trader

import (
	"testing"
	"time"

	"tradecore/internal/core"
	"tradecore/internal/exchange/paper"
	"tradecore/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
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

// Wednesday inside trading hours, so the heuristic classifier scores 1.0 on 1h
var signalTime = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

// Symbol without a table entry: paper venues quote it 100/101, last 100.5
const testSymbol = "TEST/USD"

func buySignal(price string) Signal {
	return Signal{Symbol: testSymbol, Side: core.SideBuy, Price: d(price), Timeframe: "1h", Time: signalTime}
}

func sellSignal(price string) Signal {
	return Signal{Symbol: testSymbol, Side: core.SideSell, Price: d(price), Timeframe: "1h", Time: signalTime.Add(time.Hour)}
}

type fixture struct {
	trader *Trader
	venues map[string]*paper.Exchange
	bus    *notify.Bus
}

func newFixture(t *testing.T, classifier core.ISignalClassifier, mutate func(*Config), venues ...*paper.Exchange) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	bus := notify.NewBus(time.Second, &mockLogger{})
	t.Cleanup(bus.Close)

	list := make([]core.IExchange, len(venues))
	byName := make(map[string]*paper.Exchange, len(venues))
	for i, v := range venues {
		list[i] = v
		byName[v.GetName()] = v
	}
	tr, err := New(list, classifier, bus, nil, cfg, &mockLogger{})
	require.NoError(t, err)
	return &fixture{trader: tr, venues: byName, bus: bus}
}

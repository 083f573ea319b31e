package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/core"
	"tradecore/internal/exchange/paper"
	"tradecore/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRiskConfig_FromDefaults(t *testing.T) {
	rc := RiskConfig(config.DefaultConfig().Risk)
	require.NoError(t, rc.Validate())
	assert.True(t, rc.RiskPerTradePercent.Equal(d("2")))
	assert.True(t, rc.StopLossPercent.Equal(d("3")))
	assert.True(t, rc.TakeProfitPercent.Equal(d("6")))
	assert.Equal(t, 5, rc.MaxPositions)
	assert.Len(t, rc.LotBands, 7)
}

func TestLotBands_FromConfig(t *testing.T) {
	bands := LotBands([]config.LotBand{{Below: 1, MinLot: 50}, {Below: 0, MinLot: 0.5}})
	require.Len(t, bands, 2)
	assert.True(t, bands[0].Below.Equal(d("1")))
	assert.True(t, bands[0].MinLot.Equal(d("50")))
	assert.True(t, bands[1].Below.IsZero())

	rc := config.DefaultConfig().Risk
	rc.LotBands = []config.LotBand{{Below: 1, MinLot: 50}, {Below: 0, MinLot: 0.5}}
	converted := RiskConfig(rc)
	require.NoError(t, converted.Validate())
	assert.True(t, converted.MinLotFor(d("0.5")).Equal(d("50")))
	assert.True(t, converted.MinLotFor(d("5000")).Equal(d("0.5")))

	bc := config.DefaultConfig().Backtest
	bc.LotBands = []config.LotBand{{Below: 1, MinLot: 1}, {Below: 10, MinLot: 5}}
	assert.Error(t, BacktestConfig(bc).Validate(), "rising lots are rejected")

	assert.Len(t, LotBands(nil), 7, "empty keeps the stock bands")
}

func TestTraderConfig_FromDefaults(t *testing.T) {
	tc := TraderConfig(config.DefaultConfig())
	assert.Equal(t, 0.3, tc.MinConfidence)
	assert.True(t, tc.AutoExecuteThreshold.Equal(d("0.5")))
	assert.Equal(t, "BTC/USD", tc.Symbol)
	assert.Equal(t, 5, tc.Circuit.MaxConsecutiveLosses)
	assert.Equal(t, 3*time.Second, tc.VenueTimeout)
}

func TestBacktestConfig_FromDefaults(t *testing.T) {
	bc := BacktestConfig(config.DefaultConfig().Backtest)
	require.NoError(t, bc.Validate())
	assert.True(t, bc.StartingCapital.Equal(d("10000")))
	assert.Equal(t, 0.7, bc.ConfidenceThreshold)
	assert.True(t, bc.MaxPositionCostPercent.Equal(d("10")))
	assert.False(t, bc.EnforceStops)
}

func TestScannerConfig_MergesAmounts(t *testing.T) {
	sc := ScannerConfig(config.ArbitrageConfig{
		Amounts:       map[string]float64{"BTC": 0.02},
		DefaultAmount: 5,
	})
	assert.True(t, sc.Amounts["BTC"].Equal(d("0.02")))
	assert.True(t, sc.Amounts["ETH"].Equal(d("0.1")), "stock amount kept")
	assert.True(t, sc.DefaultAmount.Equal(d("5")))
}

func TestCollectorConfig_Excludes(t *testing.T) {
	cfg := testConfig()
	b := cfg.Venues["paper-b"]
	b.ExcludeFromQuote = true
	cfg.Venues["paper-b"] = b

	cc := CollectorConfig(cfg)
	assert.Equal(t, []string{"paper-b"}, cc.ExcludeFromQuote)
	assert.Equal(t, 2, cc.MaxRetries)
}

func TestBuildVenues(t *testing.T) {
	venues, err := BuildVenues(testConfig())
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, "paper-a", venues[0].GetName())
	assert.Equal(t, "paper-b", venues[1].GetName())

	ctx := context.Background()
	a, err := venues[0].FetchTicker(ctx, "BTC/USD")
	require.NoError(t, err)
	b, err := venues[1].FetchTicker(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.True(t, a.Bid.Equal(d("116900")))
	assert.True(t, b.Bid.Equal(d("117835.2")), "got %s", b.Bid)

	pb, ok := venues[1].(*paper.Exchange)
	require.True(t, ok)
	assert.True(t, pb.Holding("BTC/USD").Equal(d("0.05")))
}

func TestBuildVenues_Unsupported(t *testing.T) {
	cfg := testConfig()
	cfg.Venues["paper-a"] = config.VenueConfig{Type: "kraken"}
	_, err := BuildVenues(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.App.ActiveVenues = []string{"missing"}
	_, err = BuildVenues(cfg)
	assert.Error(t, err)
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	mem, closeMem, err := BuildStore(config.StoreConfig{Type: "memory"})
	require.NoError(t, err)
	require.NoError(t, closeMem())
	snap, err := mem.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	path := filepath.Join(t.TempDir(), "state.db")
	sq, closeSQL, err := BuildStore(config.StoreConfig{Type: "sqlite", Path: path})
	require.NoError(t, err)
	require.NoError(t, sq.SaveSnapshot(ctx, &core.Snapshot{CurrentSymbol: "ETH/USD"}))
	require.NoError(t, closeSQL())

	_, _, err = BuildStore(config.StoreConfig{Type: "postgres"})
	assert.Error(t, err)
}

func TestBuildBus_RedisSink(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := testConfig()
	cfg.Notify.Redis.Enabled = true
	cfg.Notify.Redis.Addr = mr.Addr()
	cfg.Notify.Redis.Stream = "test:events"

	bus, checks, closeBus := BuildBus(cfg, &mockLogger{})
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["redis"]())

	bus.Publish(context.Background(), notify.Event{Type: notify.EventTradeClosed, Time: time.Now()})
	bus.Flush()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	msgs, err := rdb.XRange(context.Background(), "test:events", "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	require.NoError(t, closeBus())
}

func TestBuildBus_NoSinks(t *testing.T) {
	bus, checks, closeBus := BuildBus(testConfig(), &mockLogger{})
	assert.Empty(t, checks)
	sub := bus.Subscribe(1)
	require.NoError(t, closeBus())
	_, open := <-sub
	assert.False(t, open)
}

package bootstrap

import (
	"context"
	"testing"
	"time"

	"tradecore/internal/core"
	"tradecore/internal/exchange/paper"
	"tradecore/internal/trading/trader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(testConfig(), &mockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewService_Wiring(t *testing.T) {
	s := newTestService(t)

	assert.Len(t, s.Venues, 2)
	assert.Nil(t, s.Metrics)
	assert.ElementsMatch(t, []string{
		"circuit_breaker",
		"order_executor",
		"quote_pool",
		"task." + TaskMonitor,
		"task." + TaskArbitrage,
		"task." + TaskRisk,
		"task." + TaskAutosave,
	}, s.Health.Components())

	names := make([]string, 0, 4)
	for _, st := range s.Scheduler.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{TaskMonitor, TaskArbitrage, TaskRisk, TaskAutosave}, names)
}

func TestService_ScanAutoExecutes(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.refreshBalances(ctx))

	require.NoError(t, s.scanArbitrage(ctx))

	fills := s.Trader.ArbitrageFills()
	require.Len(t, fills, 2)
	assert.Equal(t, "BTC/USD", fills[0].Symbol)
	assert.Equal(t, "BTC/USDT", fills[1].Symbol)
	for _, f := range fills {
		assert.Equal(t, "paper-a", f.BuyVenue)
		assert.Equal(t, "paper-b", f.SellVenue)
		assert.True(t, f.Profit.Equal(d("7.352")), "got %s", f.Profit)
	}

	pb := s.Venues[1].(*paper.Exchange)
	assert.True(t, pb.Holding("BTC/USD").Equal(d("0.04")))
	assert.NotEmpty(t, s.Monitor.Last())
}

func TestService_ScanDisabledAutoExecute(t *testing.T) {
	cfg := testConfig()
	cfg.Arbitrage.AutoExecute = false
	s, err := NewService(cfg, &mockLogger{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.refreshBalances(ctx))
	require.NoError(t, s.scanArbitrage(ctx))
	assert.Empty(t, s.Trader.ArbitrageFills())
	assert.NotEmpty(t, s.Monitor.Last())
}

func TestService_SaveRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	require.NoError(t, s.refreshBalances(ctx))

	err := s.Trader.HandleSignal(ctx, trader.Signal{
		Symbol:    "BTC/USD",
		Side:      core.SideBuy,
		Price:     d("117000"),
		Timeframe: "1h",
		Time:      time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	restored := newTestService(t)
	restored.Store = s.Store
	require.NoError(t, restored.Restore(ctx))

	open := restored.Trader.Status().OpenPositions
	require.Len(t, open, 1)
	assert.Equal(t, "BTC/USD", open[0].Symbol)
	assert.Equal(t, s.Trader.Status().OpenPositions[0].ID, open[0].ID)
}

func TestService_RestoreWithoutSnapshot(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.Restore(context.Background()))
	assert.Empty(t, s.Trader.Status().OpenPositions)
}

func TestService_RunSavesOnShutdown(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, ok := s.Scheduler.LastSuccess(TaskMonitor)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}

	snap, err := s.Store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "BTC/USD", snap.CurrentSymbol)
}

package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tradecore/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	e := newEngine(t, 0.9, nil)
	res, err := e.Replay(context.Background(), nil, signalsOf(
		sig(0, core.SideBuy, "100"),
		sig(5, core.SideSell, "110"),
	))
	require.NoError(t, err)

	out := Report(res, t0)
	assert.Contains(t, out, "# Backtest Report")
	assert.Contains(t, out, "- Total Trades: 1")
	assert.Contains(t, out, "- Win Rate: 100.00%")
	assert.Contains(t, out, "- Final Balance: $10100.00")
	assert.Contains(t, out, "- BUY ETH/USD 2024-03-04 - P/L: $100.00 (10.00%) [signal]")
}

func TestReport_TradeLogIsTruncated(t *testing.T) {
	res := &Result{}
	for i := 0; i < 12; i++ {
		res.Trades = append(res.Trades, core.ClosedTrade{ID: fmt.Sprint(i), Side: core.SideBuy, Symbol: "X"})
	}
	out := Report(res, t0)
	assert.Equal(t, ReportTradeLog, strings.Count(out, "- BUY X"))
	assert.Contains(t, out, "- Starting Balance: $0.00")
}

func TestWriteResultJSON(t *testing.T) {
	e := newEngine(t, 0.9, nil)
	res, err := e.Replay(context.Background(), nil, signalsOf(sig(0, core.SideBuy, "100")))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "results", "run.json")
	require.NoError(t, WriteResultJSON(path, res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ETH/USD", decoded["symbol"])
	assert.Contains(t, decoded, "metrics")
	assert.Len(t, decoded["open_positions"], 1)
}

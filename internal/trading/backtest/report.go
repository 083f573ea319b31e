package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReportTradeLog is how many trailing closed trades the report lists
const ReportTradeLog = 10

// Report renders a markdown summary of a run
func Report(res *Result, generatedAt time.Time) string {
	m := res.Metrics
	start := decimal.Zero
	if len(res.Equity) > 0 {
		start = res.Equity[0].Balance
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Backtest Report\n")
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Symbol: %s (%s)\n\n", res.Symbol, res.Timeframe)

	fmt.Fprintf(&b, "## Summary\n")
	fmt.Fprintf(&b, "- Total Trades: %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "- Win Rate: %.2f%%\n", m.WinRate)
	fmt.Fprintf(&b, "- Profit Factor: %.2f\n", m.ProfitFactor)
	fmt.Fprintf(&b, "- Sharpe Ratio: %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "- Max Drawdown: %.2f%%\n\n", m.MaxDrawdown)

	fmt.Fprintf(&b, "## Performance\n")
	fmt.Fprintf(&b, "- Starting Balance: $%s\n", start.StringFixed(2))
	fmt.Fprintf(&b, "- Final Balance: $%s\n", res.FinalBalance.StringFixed(2))
	fmt.Fprintf(&b, "- Total Profit: $%.2f (%.2f%%)\n", m.TotalProfit, m.TotalProfitPercent)
	fmt.Fprintf(&b, "- Open Positions: %d\n\n", len(res.OpenPositions))

	fmt.Fprintf(&b, "## Trade Statistics\n")
	fmt.Fprintf(&b, "- Winning Trades: %d\n", m.Wins)
	fmt.Fprintf(&b, "- Losing Trades: %d\n", m.Losses)
	fmt.Fprintf(&b, "- Average Win: $%.2f\n", m.AvgWin)
	fmt.Fprintf(&b, "- Average Loss: $%.2f\n", m.AvgLoss)
	fmt.Fprintf(&b, "- Best Trade: $%.2f\n", m.BestTrade)
	fmt.Fprintf(&b, "- Worst Trade: $%.2f\n\n", m.WorstTrade)

	fmt.Fprintf(&b, "## Trade Log\n")
	trades := res.Trades
	if len(trades) > ReportTradeLog {
		trades = trades[len(trades)-ReportTradeLog:]
	}
	if len(trades) == 0 {
		b.WriteString("- no closed trades\n")
	}
	for _, t := range trades {
		fmt.Fprintf(&b, "- %s %s %s - P/L: $%s (%s%%) [%s]\n",
			strings.ToUpper(string(t.Side)),
			t.Symbol,
			t.EntryTime.Format(time.DateOnly),
			t.Profit.StringFixed(2),
			t.ProfitPercent.StringFixed(2),
			t.ExitReason)
	}
	return b.String()
}

// WriteResultJSON writes the result as indented JSON, creating parent directories
func WriteResultJSON(path string, res *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

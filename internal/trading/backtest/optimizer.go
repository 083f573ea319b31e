package backtest

import (
	"context"
	"fmt"
	"sort"

	"tradecore/internal/core"
	"tradecore/internal/trading/performance"
	"tradecore/pkg/concurrency"

	"github.com/shopspring/decimal"
)

// Params is one parameter combination of a sweep
type Params struct {
	RiskPerTradePercent decimal.Decimal `json:"risk_per_trade_percent"`
	StopLossPercent     decimal.Decimal `json:"stop_loss_percent"`
	TakeProfitPercent   decimal.Decimal `json:"take_profit_percent"`
	ConfidenceThreshold float64         `json:"confidence_threshold"`
}

func (p Params) String() string {
	return fmt.Sprintf("risk=%s%% sl=%s%% tp=%s%% conf=%.2f",
		p.RiskPerTradePercent, p.StopLossPercent, p.TakeProfitPercent, p.ConfidenceThreshold)
}

// Grid lists the candidate values per parameter
type Grid struct {
	RiskPerTradePercent []decimal.Decimal
	StopLossPercent     []decimal.Decimal
	TakeProfitPercent   []decimal.Decimal
	ConfidenceThreshold []float64
}

func DefaultGrid() Grid {
	ints := func(vs ...int64) []decimal.Decimal {
		out := make([]decimal.Decimal, len(vs))
		for i, v := range vs {
			out[i] = decimal.NewFromInt(v)
		}
		return out
	}
	return Grid{
		RiskPerTradePercent: ints(1, 2, 3),
		StopLossPercent:     ints(2, 3, 5),
		TakeProfitPercent:   ints(4, 6, 8),
		ConfidenceThreshold: []float64{0.6, 0.7, 0.8},
	}
}

// Combinations enumerates the grid with risk outermost and confidence innermost
func (g Grid) Combinations() []Params {
	var out []Params
	for _, r := range g.RiskPerTradePercent {
		for _, sl := range g.StopLossPercent {
			for _, tp := range g.TakeProfitPercent {
				for _, c := range g.ConfidenceThreshold {
					out = append(out, Params{
						RiskPerTradePercent: r,
						StopLossPercent:     sl,
						TakeProfitPercent:   tp,
						ConfidenceThreshold: c,
					})
				}
			}
		}
	}
	return out
}

// Trial is the outcome of one combination
type Trial struct {
	Rank         int                 `json:"rank"`
	GridIndex    int                 `json:"grid_index"`
	Params       Params              `json:"params"`
	Metrics      performance.Metrics `json:"metrics"`
	FinalBalance decimal.Decimal     `json:"final_balance"`
	Err          error               `json:"-"`
}

// Optimizer sweeps a grid, one independent engine per combination
type Optimizer struct {
	pool       *concurrency.WorkerPool
	classifier core.ISignalClassifier
	logger     core.ILogger
}

// NewOptimizer creates an optimizer. The classifier is shared by every trial
// and must be safe for concurrent use.
func NewOptimizer(pool *concurrency.WorkerPool, classifier core.ISignalClassifier, logger core.ILogger) *Optimizer {
	return &Optimizer{
		pool:       pool,
		classifier: classifier,
		logger:     logger.WithField("component", "optimizer"),
	}
}

// Optimize runs every combination over the same bars and returns trials ranked
// by Sharpe, then profit factor, then grid order. Failed trials sort last.
func (o *Optimizer) Optimize(ctx context.Context, base Config, bars []Bar, grid Grid) ([]Trial, error) {
	combos := grid.Combinations()
	if len(combos) == 0 {
		return nil, fmt.Errorf("empty parameter grid")
	}

	trials := make([]Trial, len(combos))
	tasks := make([]func(), len(combos))
	for i, p := range combos {
		i, p := i, p
		trials[i] = Trial{GridIndex: i, Params: p}
		tasks[i] = func() {
			cfg := base
			cfg.Risk.RiskPerTradePercent = p.RiskPerTradePercent
			cfg.Risk.StopLossPercent = p.StopLossPercent
			cfg.Risk.TakeProfitPercent = p.TakeProfitPercent
			cfg.ConfidenceThreshold = p.ConfidenceThreshold

			engine := NewEngine(o.classifier, o.logger)
			if err := engine.Initialize(cfg); err != nil {
				trials[i].Err = err
				return
			}
			res, err := engine.Run(ctx, bars)
			if err != nil {
				trials[i].Err = err
				return
			}
			trials[i].Metrics = res.Metrics
			trials[i].FinalBalance = res.FinalBalance
		}
	}

	for _, idx := range o.pool.RunAll(tasks) {
		trials[idx].Err = fmt.Errorf("trial %d not scheduled", idx)
	}

	RankTrials(trials)

	failed := 0
	for _, t := range trials {
		if t.Err != nil {
			failed++
		}
	}
	if failed == len(trials) {
		return trials, fmt.Errorf("all %d trials failed: %w", failed, trials[0].Err)
	}

	o.logger.Info("Optimization completed",
		"trials", len(trials),
		"failed", failed,
		"best", trials[0].Params.String(),
		"sharpe", trials[0].Metrics.SharpeRatio)
	return trials, nil
}

// RankTrials sorts in place and assigns 1-based ranks
func RankTrials(trials []Trial) {
	sort.SliceStable(trials, func(i, j int) bool {
		a, b := trials[i], trials[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Metrics.SharpeRatio != b.Metrics.SharpeRatio {
			return a.Metrics.SharpeRatio > b.Metrics.SharpeRatio
		}
		if a.Metrics.ProfitFactor != b.Metrics.ProfitFactor {
			return a.Metrics.ProfitFactor > b.Metrics.ProfitFactor
		}
		return a.GridIndex < b.GridIndex
	})
	for i := range trials {
		trials[i].Rank = i + 1
	}
}

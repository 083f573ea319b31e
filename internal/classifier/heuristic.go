// Package classifier provides placeholder signal classifiers
package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradecore/internal/core"
)

// DefaultMaxHistory bounds the retained trade history
const DefaultMaxHistory = 1000

// Heuristic scores signals from time-of-day, weekday and timeframe, and
// keeps per-pattern outcome counts. It is a stand-in for a trained model.
type Heuristic struct {
	mu         sync.RWMutex
	trades     []core.ClassifiedTrade
	patterns   map[string]core.PatternStats
	maxHistory int
}

func NewHeuristic(maxHistory int) *Heuristic {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Heuristic{
		patterns:   make(map[string]core.PatternStats),
		maxHistory: maxHistory,
	}
}

// Predict uses the signal's own time so replays score identically.
// A zero time falls back to the wall clock.
func (h *Heuristic) Predict(_ context.Context, req core.SignalRequest) (core.Prediction, error) {
	at := req.Time
	if at.IsZero() {
		at = time.Now()
	}

	confidence := 0.5
	if hour := at.Hour(); hour >= 9 && hour <= 16 {
		confidence += 0.2
	}
	if wd := at.Weekday(); wd >= time.Monday && wd <= time.Friday {
		confidence += 0.2
	}
	if req.Timeframe == "1h" {
		confidence += 0.1
	}
	if confidence > 1 {
		confidence = 1
	}

	return core.Prediction{
		Confidence:      confidence,
		PredictedReturn: (confidence - 0.5) * 10,
	}, nil
}

// PatternKey groups trades for outcome statistics
func PatternKey(symbol, timeframe string) string {
	return fmt.Sprintf("%s_%s", symbol, timeframe)
}

// RecordTrade appends an entry to the history
func (h *Heuristic) RecordTrade(t core.ClassifiedTrade) {
	if t.Pattern == "" {
		t.Pattern = PatternKey(t.Symbol, t.Timeframe)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades = append(h.trades, t)
	if over := len(h.trades) - h.maxHistory; over > 0 {
		h.trades = append([]core.ClassifiedTrade(nil), h.trades[over:]...)
	}
}

// RecordOutcome labels the matching history entry and updates pattern stats.
// Trades never recorded at entry still count toward their pattern.
func (h *Heuristic) RecordOutcome(trade core.ClosedTrade) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pattern := ""
	for i := len(h.trades) - 1; i >= 0; i-- {
		if h.trades[i].ID == trade.ID {
			profit := trade.Profit
			h.trades[i].Profit = &profit
			pattern = h.trades[i].Pattern
			break
		}
	}
	if pattern == "" {
		pattern = PatternKey(trade.Symbol, "")
	}

	stats := h.patterns[pattern]
	if trade.Profit.IsPositive() {
		stats.Wins++
	} else {
		stats.Losses++
	}
	h.patterns[pattern] = stats
}

// Accuracy is the percentage of labelled trades that were profitable
func (h *Heuristic) Accuracy() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var labelled, wins int
	for _, t := range h.trades {
		if t.Profit == nil {
			continue
		}
		labelled++
		if t.Profit.IsPositive() {
			wins++
		}
	}
	if labelled == 0 {
		return 0
	}
	return float64(wins) / float64(labelled) * 100
}

func (h *Heuristic) Patterns() map[string]core.PatternStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := make(map[string]core.PatternStats, len(h.patterns))
	for k, v := range h.patterns {
		res[k] = v
	}
	return res
}

// State returns a copy of the history for snapshots
func (h *Heuristic) State() core.ClassifierState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	trades := make([]core.ClassifiedTrade, len(h.trades))
	copy(trades, h.trades)
	patterns := make(map[string]core.PatternStats, len(h.patterns))
	for k, v := range h.patterns {
		patterns[k] = v
	}
	return core.ClassifierState{Trades: trades, Patterns: patterns}
}

// Restore replaces the history with a snapshot
func (h *Heuristic) Restore(state core.ClassifierState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades = append([]core.ClassifiedTrade(nil), state.Trades...)
	if over := len(h.trades) - h.maxHistory; over > 0 {
		h.trades = h.trades[over:]
	}
	h.patterns = make(map[string]core.PatternStats, len(state.Patterns))
	for k, v := range state.Patterns {
		h.patterns[k] = v
	}
}

// Static always returns the same prediction
type Static struct {
	Confidence      float64
	PredictedReturn float64
	Err             error
}

func (s Static) Predict(_ context.Context, _ core.SignalRequest) (core.Prediction, error) {
	if s.Err != nil {
		return core.Prediction{}, s.Err
	}
	return core.Prediction{Confidence: s.Confidence, PredictedReturn: s.PredictedReturn}, nil
}

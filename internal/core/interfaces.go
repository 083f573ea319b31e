// Package core defines the core interfaces and shared data model of the trading-decision core
package core

import (
	"context"
)

// IExchange is the venue capability consumed by the core.
// Every call is fallible and callers bound it with a context deadline.
type IExchange interface {
	GetName() string
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchBalance(ctx context.Context) (*Balance, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// ISignalClassifier scores a candidate signal
type ISignalClassifier interface {
	Predict(ctx context.Context, req SignalRequest) (Prediction, error)
}

// ITradeRecorder is implemented by classifiers that learn from closed trades
type ITradeRecorder interface {
	RecordTrade(trade ClassifiedTrade)
	RecordOutcome(trade ClosedTrade)
	State() ClassifierState
	Restore(state ClassifierState)
	Accuracy() float64
}

// IStateStore defines the interface for snapshot persistence
type IStateStore interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

package arbitrage

import (
	"context"
	"sync/atomic"
	"time"

	"tradecore/internal/core"
	"tradecore/pkg/apperrors"

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

type stubVenue struct {
	name   string
	quotes map[string][2]string // symbol -> bid, ask
	err    error
	delay  time.Duration
	calls  int64
}

func (s *stubVenue) GetName() string { return s.name }

func (s *stubVenue) FetchTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	q, ok := s.quotes[symbol]
	if !ok {
		return nil, apperrors.ErrInvalidSymbol
	}
	return &core.Ticker{Symbol: symbol, Bid: d(q[0]), Ask: d(q[1]), Last: d(q[0])}, nil
}

func (s *stubVenue) FetchBalance(ctx context.Context) (*core.Balance, error) {
	return &core.Balance{}, nil
}

func (s *stubVenue) CreateOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error) {
	return nil, apperrors.ErrVenueUnavailable
}

func quote(venue, symbol, bid, ask string) core.Quote {
	return core.Quote{Venue: venue, Symbol: symbol, Bid: d(bid), Ask: d(ask), Last: d(bid)}
}

func snapshotOf(qs ...core.Quote) core.QuoteSnapshot {
	s := make(core.QuoteSnapshot)
	for _, q := range qs {
		s.Put(q)
	}
	return s
}

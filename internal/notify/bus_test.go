package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"tradecore/internal/core"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
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

type mockSink struct {
	mu   sync.Mutex
	sent []Event
	err  error
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.err
}

func (m *mockSink) events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Event, len(m.sent))
	copy(res, m.sent)
	return res
}

func sampleOpportunity() core.ArbitrageOpportunity {
	return core.ArbitrageOpportunity{
		Symbol:         "X",
		BuyVenue:       "a",
		SellVenue:      "b",
		BuyPrice:       decimal.NewFromInt(101),
		SellPrice:      decimal.NewFromInt(103),
		Amount:         decimal.NewFromInt(1),
		ProfitPercent:  decimal.RequireFromString("1.98"),
		ProfitAbsolute: decimal.NewFromInt(2),
	}
}

func TestBus_SubscribersAndSinks(t *testing.T) {
	bus := NewBus(time.Second, &mockLogger{})
	sink := &mockSink{}
	bus.AddSink(sink)
	sub := bus.Subscribe(4)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bus.Publish(context.Background(), ArbitrageEvent(sampleOpportunity(), at))
	bus.Publish(context.Background(), TradeClosedEvent(core.ClosedTrade{ID: "p-1", Profit: decimal.NewFromInt(5), ExitTime: at}))
	bus.Flush()

	e1 := <-sub
	assert.Equal(t, EventArbitrage, e1.Type)
	assert.Equal(t, "X", e1.Opportunity.Symbol)
	e2 := <-sub
	assert.Equal(t, EventTradeClosed, e2.Type)
	assert.Equal(t, "p-1", e2.Trade.ID)

	assert.Len(t, sink.events(), 2)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(time.Second, &mockLogger{})
	sub := bus.Subscribe(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(context.Background(), ArbitrageEvent(sampleOpportunity(), time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub, 1)
}

func TestBus_SinkErrorIsIsolated(t *testing.T) {
	bus := NewBus(time.Second, &mockLogger{})
	failing := &mockSink{err: errors.New("down")}
	ok := &mockSink{}
	bus.AddSink(failing)
	bus.AddSink(ok)

	bus.Publish(context.Background(), ArbitrageEvent(sampleOpportunity(), time.Now()))
	bus.Flush()

	assert.Len(t, failing.events(), 1)
	assert.Len(t, ok.events(), 1)
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus(time.Second, &mockLogger{})
	sub := bus.Subscribe(1)
	bus.Close()

	_, open := <-sub
	assert.False(t, open)

	// publishing after close is a no-op
	bus.Publish(context.Background(), ArbitrageEvent(sampleOpportunity(), time.Now()))
}

func TestRedisSink_AppendsToStream(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	sink := NewRedisSink(RedisConfig{Addr: mr.Addr(), Stream: "events", MaxLen: 100})
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Ping(ctx))
	require.NoError(t, sink.Send(ctx, ArbitrageEvent(sampleOpportunity(), time.Now())))

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	msgs, err := rdb.XRange(ctx, "events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "arbitrage", msgs[0].Values["type"])

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &decoded))
	assert.Equal(t, "b", decoded.Opportunity.SellVenue)
	assert.True(t, decoded.Opportunity.ProfitPercent.Equal(decimal.RequireFromString("1.98")))
}

func TestRedisSink_ErrorWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	sink := NewRedisSink(RedisConfig{Addr: addr})
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, sink.Send(ctx, TradeClosedEvent(core.ClosedTrade{ID: "x"})))
}

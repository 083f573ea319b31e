package notify

import (
	"context"
	"sync"
	"time"

	"tradecore/internal/core"
)

// Publisher is the producer side of the bus
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Sink receives every event. Sends are asynchronous and time-bounded.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Name() string
}

// Bus delivers events to channel subscribers and sinks without blocking the publisher
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	sinks       []Sink
	sinkTimeout time.Duration
	inflight    sync.WaitGroup
	closed      bool
	logger      core.ILogger
}

func NewBus(sinkTimeout time.Duration, logger core.ILogger) *Bus {
	if sinkTimeout <= 0 {
		sinkTimeout = 10 * time.Second
	}
	return &Bus{
		sinkTimeout: sinkTimeout,
		logger:      logger.WithField("component", "notify_bus"),
	}
}

// Subscribe returns a buffered channel receiving every later event.
// A subscriber that falls behind loses events rather than stalling publishers.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
	b.logger.Info("Added notification sink", "name", s.Name())
}

// Publish never blocks on slow consumers
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.logger.Warn("Subscriber channel full, dropping event", "type", string(e.Type))
		}
	}

	for _, s := range b.sinks {
		b.inflight.Add(1)
		go func(s Sink) {
			defer b.inflight.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.sinkTimeout)
			defer cancel()
			if err := s.Send(sendCtx, e); err != nil {
				b.logger.Error("Failed to deliver event", "sink", s.Name(), "type", string(e.Type), "error", err)
			}
		}(s)
	}
}

// Flush waits for in-flight sink deliveries
func (b *Bus) Flush() {
	b.inflight.Wait()
}

// Close flushes sinks and closes subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = nil
	b.mu.Unlock()

	b.inflight.Wait()
	for _, ch := range subs {
		close(ch)
	}
}

// LogSink writes events to the structured log
type LogSink struct {
	logger core.ILogger
}

func NewLogSink(logger core.ILogger) *LogSink {
	return &LogSink{logger: logger.WithField("component", "notify_log")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, e Event) error {
	switch e.Type {
	case EventArbitrage:
		o := e.Opportunity
		s.logger.Info("Arbitrage opportunity",
			"symbol", o.Symbol,
			"buy_venue", o.BuyVenue,
			"sell_venue", o.SellVenue,
			"profit_percent", o.ProfitPercent.StringFixed(3),
			"profit", o.ProfitAbsolute.StringFixed(4))
	case EventTradeClosed:
		t := e.Trade
		s.logger.Info("Trade closed",
			"id", t.ID,
			"symbol", t.Symbol,
			"reason", string(t.ExitReason),
			"profit", t.Profit.StringFixed(4),
			"profit_percent", t.ProfitPercent.StringFixed(2))
	}
	return nil
}

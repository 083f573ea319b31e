// Package order places venue orders with rate limiting and failure tracking
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradecore/internal/core"
	"tradecore/pkg/apperrors"
	"tradecore/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Executor places orders on any venue through a shared rate limiter.
// Orders are never retried: a rejected order is reported as a failed trade.
type Executor struct {
	mu          sync.RWMutex
	rateLimiter *rate.Limiter
	waitTimeout time.Duration

	errorMu         sync.Mutex
	errorTimestamps []time.Time
	errorIndex      int
	errorCapacity   int

	tracer trace.Tracer
	logger core.ILogger
}

// NewExecutor creates an executor allowing 25 orders/second with a burst of 30
func NewExecutor(logger core.ILogger) *Executor {
	return &Executor{
		rateLimiter:     rate.NewLimiter(rate.Limit(25), 30),
		waitTimeout:     5 * time.Second,
		errorCapacity:   1000,
		errorTimestamps: make([]time.Time, 0, 1000),
		tracer:          telemetry.GetTracer("order-executor"),
		logger:          logger.WithField("component", "order_executor"),
	}
}

// SetRateLimit updates the rate limit
func (e *Executor) SetRateLimit(limit float64, burst int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rateLimiter = rate.NewLimiter(rate.Limit(limit), burst)
}

// Place sends one order to venue. A limiter wait longer than the configured
// timeout fails with ErrRateLimitExceeded.
func (e *Executor) Place(ctx context.Context, venue core.IExchange, req core.OrderRequest) (*core.Order, error) {
	ctx, span := e.tracer.Start(ctx, "PlaceOrder",
		trace.WithAttributes(
			attribute.String("venue", venue.GetName()),
			attribute.String("symbol", req.Symbol),
			attribute.String("side", string(req.Side)),
		),
	)
	defer span.End()

	e.mu.RLock()
	limiter, timeout := e.rateLimiter, e.waitTimeout
	e.mu.RUnlock()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	err := limiter.Wait(waitCtx)
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, "rate limited")
		return nil, fmt.Errorf("%w: %w", apperrors.ErrRateLimitExceeded, err)
	}

	attrs := metric.WithAttributes(
		attribute.String("venue", venue.GetName()),
		attribute.String("side", string(req.Side)),
	)
	metrics := telemetry.GetGlobalMetrics()

	order, err := venue.CreateOrder(ctx, req)
	if err != nil {
		e.recordError()
		metrics.OrdersRejected.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("Order rejected",
			"venue", venue.GetName(),
			"symbol", req.Symbol,
			"side", req.Side,
			"amount", req.Amount.String(),
			"error", err)
		if errors.Is(err, apperrors.ErrInsufficientBalance) || errors.Is(err, apperrors.ErrInsufficientPosition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrVenueUnavailable, venue.GetName(), err)
	}

	metrics.OrdersPlacedTotal.Add(ctx, 1, attrs)
	e.logger.Info("Order placed",
		"venue", venue.GetName(),
		"id", order.ID,
		"symbol", req.Symbol,
		"side", req.Side,
		"amount", req.Amount.String(),
		"price", req.Price.String())
	return order, nil
}

// CheckHealth fails when more than 50 orders were rejected in the last 5 minutes
func (e *Executor) CheckHealth() error {
	if n := e.recentErrorCount(5 * time.Minute); n > 50 {
		return fmt.Errorf("high order rejection rate: %d in last 5 minutes", n)
	}
	return nil
}

func (e *Executor) recordError() {
	e.errorMu.Lock()
	defer e.errorMu.Unlock()

	if len(e.errorTimestamps) < e.errorCapacity {
		e.errorTimestamps = append(e.errorTimestamps, time.Now())
	} else {
		e.errorTimestamps[e.errorIndex] = time.Now()
		e.errorIndex = (e.errorIndex + 1) % e.errorCapacity
	}
}

func (e *Executor) recentErrorCount(window time.Duration) int {
	e.errorMu.Lock()
	defer e.errorMu.Unlock()

	cutoff := time.Now().Add(-window)
	count := 0
	for _, t := range e.errorTimestamps {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

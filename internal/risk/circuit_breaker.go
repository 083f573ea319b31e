package risk

import (
	"sync"
	"time"

	"tradecore/pkg/apperrors"
	"tradecore/pkg/telemetry"

	"github.com/shopspring/decimal"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
)

// CircuitConfig disables a threshold when it is zero
type CircuitConfig struct {
	MaxConsecutiveLosses int
	MaxLossAmount        decimal.Decimal
	CooldownPeriod       time.Duration
}

// CircuitStatus is a point-in-time view of the breaker
type CircuitStatus struct {
	Open              bool
	ConsecutiveLosses int
	TotalPnL          decimal.Decimal
	OpenedAt          time.Time
	Reason            string
}

// CircuitBreaker halts new entries after a losing streak or a cumulative loss
type CircuitBreaker struct {
	mu                sync.Mutex
	state             CircuitState
	config            CircuitConfig
	consecutiveLosses int
	totalPnL          decimal.Decimal
	lastTripped       time.Time
	reason            string
	now               func() time.Time
}

func NewCircuitBreaker(config CircuitConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:  CircuitClosed,
		config: config,
		now:    time.Now,
	}
}

// RecordTrade feeds a realized profit into the breaker
func (cb *CircuitBreaker) RecordTrade(pnl decimal.Decimal) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if pnl.IsNegative() {
		cb.consecutiveLosses++
	} else {
		cb.consecutiveLosses = 0
	}
	cb.totalPnL = cb.totalPnL.Add(pnl)

	cb.checkThresholds()
}

func (cb *CircuitBreaker) checkThresholds() {
	if cb.state == CircuitOpen {
		return
	}
	if cb.config.MaxConsecutiveLosses > 0 && cb.consecutiveLosses >= cb.config.MaxConsecutiveLosses {
		cb.trip("max consecutive losses reached")
		return
	}
	if cb.config.MaxLossAmount.IsPositive() && cb.totalPnL.LessThan(cb.config.MaxLossAmount.Neg()) {
		cb.trip("max loss amount reached")
	}
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.state = CircuitOpen
	cb.lastTripped = cb.now()
	cb.reason = reason
	telemetry.GetGlobalMetrics().SetCircuitBreakerOpen("global", true)
}

func (cb *CircuitBreaker) reset() {
	cb.state = CircuitClosed
	cb.consecutiveLosses = 0
	cb.totalPnL = decimal.Zero
	cb.reason = ""
	telemetry.GetGlobalMetrics().SetCircuitBreakerOpen("global", false)
}

// IsTripped reports whether new entries are blocked, auto-resetting after the cooldown
func (cb *CircuitBreaker) IsTripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return false
	}
	if cb.config.CooldownPeriod > 0 && cb.now().Sub(cb.lastTripped) > cb.config.CooldownPeriod {
		cb.reset()
		return false
	}
	return true
}

// Allow returns ErrCircuitOpen while the breaker is tripped
func (cb *CircuitBreaker) Allow() error {
	if cb.IsTripped() {
		return apperrors.ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

// Open manually trips the circuit breaker
func (cb *CircuitBreaker) Open(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trip(reason)
}

func (cb *CircuitBreaker) Status() CircuitStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitStatus{
		Open:              cb.state == CircuitOpen,
		ConsecutiveLosses: cb.consecutiveLosses,
		TotalPnL:          cb.totalPnL,
		OpenedAt:          cb.lastTripped,
		Reason:            cb.reason,
	}
}

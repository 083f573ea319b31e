package risk

import (
	"errors"
	"testing"
	"time"

	"tradecore/pkg/apperrors"

	"github.com/shopspring/decimal"
)

func TestCircuitBreaker_ConsecutiveLoss(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{MaxConsecutiveLosses: 3})

	if cb.IsTripped() {
		t.Error("Circuit breaker should not be tripped initially")
	}

	cb.RecordTrade(decimal.NewFromFloat(-10.0))
	if cb.IsTripped() {
		t.Error("Circuit breaker should not trip after 1 loss")
	}

	// a win resets the streak
	cb.RecordTrade(decimal.NewFromFloat(5.0))
	if cb.consecutiveLosses != 0 {
		t.Errorf("Consecutive losses should be reset after a win, got %d", cb.consecutiveLosses)
	}

	cb.RecordTrade(decimal.NewFromFloat(-5.0))
	cb.RecordTrade(decimal.NewFromFloat(-5.0))
	cb.RecordTrade(decimal.NewFromFloat(-5.0))

	if !cb.IsTripped() {
		t.Error("Circuit breaker should trip after 3 consecutive losses")
	}
	if err := cb.Allow(); !errors.Is(err, apperrors.ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_LossAmount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{MaxLossAmount: decimal.NewFromInt(100)})

	cb.RecordTrade(decimal.NewFromInt(-60))
	if cb.IsTripped() {
		t.Error("Circuit breaker should not trip below the loss amount")
	}
	cb.RecordTrade(decimal.NewFromInt(-50))
	if !cb.IsTripped() {
		t.Error("Circuit breaker should trip after exceeding max loss amount")
	}
}

func TestCircuitBreaker_Cooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitConfig{MaxConsecutiveLosses: 1, CooldownPeriod: time.Minute})
	cb.now = func() time.Time { return now }

	cb.RecordTrade(decimal.NewFromInt(-1))
	if !cb.IsTripped() {
		t.Fatal("expected breaker to trip")
	}

	now = now.Add(30 * time.Second)
	if !cb.IsTripped() {
		t.Error("breaker should stay open during cooldown")
	}

	now = now.Add(31 * time.Second)
	if cb.IsTripped() {
		t.Error("breaker should reset after cooldown")
	}
	if st := cb.Status(); st.ConsecutiveLosses != 0 || !st.TotalPnL.IsZero() {
		t.Errorf("counters not cleared after cooldown: %+v", st)
	}
}

func TestCircuitBreaker_ManualOpenAndReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitConfig{})

	cb.Open("operator halt")
	st := cb.Status()
	if !st.Open || st.Reason != "operator halt" {
		t.Errorf("unexpected status after Open: %+v", st)
	}

	cb.Reset()
	if cb.IsTripped() {
		t.Error("Circuit breaker should be closed after reset")
	}
}

package health

import (
	"fmt"
	"testing"
)

func TestManager_Aggregation(t *testing.T) {
	hm := NewManager(nil)

	if !hm.IsHealthy() {
		t.Error("Empty health manager should be healthy")
	}

	hm.Register("scheduler", func() error { return nil })
	if !hm.IsHealthy() {
		t.Error("Healthy component should not fail manager")
	}

	hm.Register("store", func() error { return fmt.Errorf("disk full") })
	if hm.IsHealthy() {
		t.Error("Unhealthy component should fail manager")
	}

	status := hm.GetStatus()
	if status["scheduler"] != "Healthy" {
		t.Errorf("Expected Healthy, got %s", status["scheduler"])
	}
	if status["store"] != "Unhealthy: disk full" {
		t.Errorf("Expected Unhealthy, got %s", status["store"])
	}
}

func TestManager_RegisterReplaces(t *testing.T) {
	hm := NewManager(nil)
	hm.Register("redis", func() error { return fmt.Errorf("connection refused") })
	hm.Register("redis", func() error { return nil })

	if !hm.IsHealthy() {
		t.Error("Replaced check should be used")
	}
	if got := hm.Components(); len(got) != 1 || got[0] != "redis" {
		t.Errorf("Expected [redis], got %v", got)
	}
}

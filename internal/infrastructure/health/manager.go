// Package health aggregates component checks for the liveness endpoint
package health

import (
	"sort"
	"sync"
	"time"

	"tradecore/internal/core"
)

const (
	StatusHealthy   = "Healthy"
	StatusUnhealthy = "Unhealthy"
)

// Report is the aggregated status served on /healthz
type Report struct {
	Healthy    bool              `json:"healthy"`
	CheckedAt  time.Time         `json:"checked_at"`
	Components map[string]string `json:"components"`
}

// Manager aggregates health status from different components
type Manager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]func() error
	now    func() time.Time
}

// NewManager creates a new health manager
func NewManager(logger core.ILogger) *Manager {
	m := &Manager{
		checks: make(map[string]func() error),
		now:    time.Now,
	}
	if logger != nil {
		m.logger = logger.WithField("component", "health_manager")
	}
	return m
}

// Register adds or replaces the health check for a component
func (m *Manager) Register(component string, check func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[component] = check
}

// Components lists the registered component names in order
func (m *Manager) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStatus returns the current status of all registered components
func (m *Manager) GetStatus() map[string]string {
	return m.Report().Components
}

// IsHealthy returns true if every registered component is healthy
func (m *Manager) IsHealthy() bool {
	return m.Report().Healthy
}

// Report runs every check once
func (m *Manager) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := Report{
		Healthy:    true,
		CheckedAt:  m.now(),
		Components: make(map[string]string, len(m.checks)),
	}
	for component, check := range m.checks {
		if err := check(); err != nil {
			r.Healthy = false
			r.Components[component] = StatusUnhealthy + ": " + err.Error()
			if m.logger != nil {
				m.logger.Warn("Component unhealthy", "name", component, "error", err)
			}
			continue
		}
		r.Components[component] = StatusHealthy
	}
	return r
}

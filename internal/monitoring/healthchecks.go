package monitoring

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	HEALTHCHECK_TIMER   = 15 * time.Second
	HEALTHCHECK_TIMEOUT = 3 * time.Second
)

type HealthCheck func(ctx context.Context) bool

type check struct {
	fn      HealthCheck
	healthy *atomic.Bool
}

// Monitor polls dependency health checks and keeps the last answer of each.
// Dependencies start healthy until a check says otherwise.
type Monitor struct {
	mu       sync.RWMutex
	checks   map[string]check
	interval time.Duration
	timeout  time.Duration
}

func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = HEALTHCHECK_TIMER
	}
	return &Monitor{
		checks:   make(map[string]check),
		interval: interval,
		timeout:  HEALTHCHECK_TIMEOUT,
	}
}

// Register adds a named check and returns the flag it keeps up to date.
func (m *Monitor) Register(name string, fn HealthCheck) *atomic.Bool {
	healthy := &atomic.Bool{}
	healthy.Store(true)

	m.mu.Lock()
	m.checks[name] = check{fn: fn, healthy: healthy}
	m.mu.Unlock()
	return healthy
}

func (m *Monitor) Run(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, c := range m.checks {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		isHealthy := c.fn(checkCtx)
		cancel()

		if was := c.healthy.Swap(isHealthy); was != isHealthy {
			if isHealthy {
				slog.Info("[HealthCheck] Dependency recovered", slog.String("dependency", name))
			} else {
				slog.Warn("[HealthCheck] Dependency is unhealthy", slog.String("dependency", name))
			}
		}
	}
}

func (m *Monitor) Snapshot() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool, len(m.checks))
	for name, c := range m.checks {
		out[name] = c.healthy.Load()
	}
	return out
}

// Unhealthy lists failing dependencies by name.
func (m *Monitor) Unhealthy() []string {
	var names []string
	for name, ok := range m.Snapshot() {
		if !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

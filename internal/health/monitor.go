package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/newsfeed/internal/infra/fetch"
	"github.com/vietddude/newsfeed/internal/infra/storage"
)

// UpstreamTracker reports the observed state of the news provider.
type UpstreamTracker interface {
	CheckStatus() fetch.Status
	GetStats() fetch.MonitorStats
}

// EntryCounter reports how many responses are cached.
type EntryCounter interface {
	Stats(ctx context.Context) (int, error)
}

// Monitor aggregates health status from the upstream, the store and the cache.
type Monitor struct {
	upstream UpstreamTracker
	store    storage.HealthChecker
	entries  EntryCounter
	interval time.Duration

	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. store and entries may be nil.
func NewMonitor(upstream UpstreamTracker, store storage.HealthChecker, entries EntryCounter) *Monitor {
	return &Monitor{
		upstream: upstream,
		store:    store,
		entries:  entries,
		interval: 10 * time.Second,
	}
}

// SetInterval changes how long a report is reused.
func (m *Monitor) SetInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
}

// CheckHealth returns the current report. Reports are reused for the check
// interval so that probes do not hammer the store.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.interval {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
		CheckedAt:    time.Now(),
	}

	// 1. Upstream
	if m.upstream != nil {
		up := ComponentHealth{Status: StatusHealthy, Stats: m.upstream.GetStats()}
		switch st := m.upstream.CheckStatus(); st {
		case fetch.StatusDown:
			up.Status = StatusCritical
			up.Detail = st.String()
		case fetch.StatusDegraded, fetch.StatusThrottled:
			up.Status = StatusDegraded
			up.Detail = st.String()
		}
		report.Components["upstream"] = up
	}

	// 2. Store
	if m.store != nil {
		st := ComponentHealth{Status: StatusHealthy}
		if err := m.store.Health(ctx); err != nil {
			st.Status = StatusCritical
			st.Detail = err.Error()
		}
		report.Components["store"] = st
	}

	// 3. Cache size, informational
	if m.entries != nil {
		c := ComponentHealth{Status: StatusHealthy}
		if n, err := m.entries.Stats(ctx); err != nil {
			c.Status = StatusDegraded
			c.Detail = err.Error()
		} else {
			c.Detail = fmt.Sprintf("%d entries", n)
		}
		report.Components["cache"] = c
	}

	for _, c := range report.Components {
		report.SystemStatus = worse(report.SystemStatus, c.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

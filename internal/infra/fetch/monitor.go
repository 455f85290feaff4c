package fetch

import (
	"sync"
	"time"
)

// Status represents the observed health of the upstream.
type Status int

const (
	StatusHealthy   Status = iota // Upstream answering normally
	StatusDegraded                // Slow or failing intermittently
	StatusThrottled               // Recently rate limited
	StatusDown                    // Every recent attempt failed at transport level
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// MonitorStats is a snapshot of upstream behavior.
type MonitorStats struct {
	Status          string         `json:"status"`
	AverageLatency  time.Duration  `json:"average_latency"`
	Requests        int            `json:"requests"`
	Failures        map[string]int `json:"failures"`
	ThrottleCount   int            `json:"throttle_count"`
	LastThrottleAt  *time.Time     `json:"last_throttle_at,omitempty"`
	RetryAfter      time.Duration  `json:"retry_after"`
	ConsecutiveFail int            `json:"consecutive_failures"`
}

// Monitor tracks latency, failures and throttling of upstream attempts.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	requests        int
	failures        map[Kind]int
	consecutiveFail int

	throttleCount    int
	lastThrottleTime time.Time
	retryAfter       time.Duration

	slowResponseThreshold time.Duration
	throttleWindow        time.Duration
	downAfter             int
}

// NewMonitor creates a monitor with default thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		failures:              make(map[Kind]int),
		slowResponseThreshold: 3 * time.Second,
		throttleWindow:        time.Minute,
		downAfter:             5,
	}
}

// RecordSuccess records a successful attempt with its latency.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.consecutiveFail = 0
	m.pushLatency(latency)
}

// RecordFailure records a failed attempt.
func (m *Monitor) RecordFailure(ferr *Error, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.failures[ferr.Kind]++

	switch ferr.Kind {
	case KindRateLimit:
		m.throttleCount++
		m.lastThrottleTime = time.Now()
		m.retryAfter = ferr.RetryAfter
		if m.retryAfter <= 0 {
			m.retryAfter = m.throttleWindow
		}
	case KindTimeout, KindNetwork:
		m.consecutiveFail++
	default:
		m.pushLatency(latency)
	}
}

func (m *Monitor) pushLatency(latency time.Duration) {
	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
}

// CheckStatus returns the current status of the upstream.
func (m *Monitor) CheckStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() Status {
	if m.consecutiveFail >= m.downAfter {
		return StatusDown
	}
	if m.throttleCount > 0 && time.Since(m.lastThrottleTime) < m.retryAfter {
		return StatusThrottled
	}
	if m.consecutiveFail > 0 {
		return StatusDegraded
	}
	if len(m.recentLatencies) > 10 && m.averageLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// RemainingRetryAfter returns how long the last 429 asked us to wait.
func (m *Monitor) RemainingRetryAfter() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.retryAfter > 0 {
		if remaining := m.retryAfter - time.Since(m.lastThrottleTime); remaining > 0 {
			return remaining
		}
	}
	return 0
}

func (m *Monitor) averageLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// GetStats returns current monitoring statistics.
func (m *Monitor) GetStats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MonitorStats{
		Status:          m.statusLocked().String(),
		AverageLatency:  m.averageLocked(),
		Requests:        m.requests,
		Failures:        make(map[string]int, len(m.failures)),
		ThrottleCount:   m.throttleCount,
		ConsecutiveFail: m.consecutiveFail,
	}
	for k, n := range m.failures {
		stats.Failures[k.String()] = n
	}
	if !m.lastThrottleTime.IsZero() {
		t := m.lastThrottleTime
		stats.LastThrottleAt = &t
		if remaining := m.retryAfter - time.Since(t); remaining > 0 {
			stats.RetryAfter = remaining
		}
	}
	return stats
}

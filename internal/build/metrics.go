package build

import (
	"sync"
	"time"
)

// Metrics accumulates pass outcomes over the life of a watch session.
type Metrics struct {
	mutex         sync.RWMutex
	passes        int64
	failed        int64
	files         int64
	totalDuration time.Duration
	lastDuration  time.Duration
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Passes          int64         `json:"passes"`
	Failed          int64         `json:"failed"`
	Files           int64         `json:"files"`
	TotalDuration   time.Duration `json:"total_duration"`
	LastDuration    time.Duration `json:"last_duration"`
	AverageDuration time.Duration `json:"average_duration"`
}

// NewMetrics returns an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds the outcome of one pass. Only successful passes count
// towards files and durations.
func (m *Metrics) Record(rep *Report, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.passes++
	if err != nil {
		m.failed++
		return
	}
	if rep != nil {
		m.files += int64(len(rep.Pairs))
		m.totalDuration += rep.Duration
		m.lastDuration = rep.Duration
	}
}

// Snapshot returns the current totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s := MetricsSnapshot{
		Passes:        m.passes,
		Failed:        m.failed,
		Files:         m.files,
		TotalDuration: m.totalDuration,
		LastDuration:  m.lastDuration,
	}
	if ok := m.passes - m.failed; ok > 0 {
		s.AverageDuration = m.totalDuration / time.Duration(ok)
	}
	return s
}

// SuccessRate returns the share of passes that succeeded, as a percentage.
func (m *Metrics) SuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.passes == 0 {
		return 0.0
	}
	return float64(m.passes-m.failed) / float64(m.passes) * 100.0
}

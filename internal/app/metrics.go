package app

import (
	"sync/atomic"
	"time"
)

// Metrics counts document activity across the application.
type Metrics struct {
	opened   atomic.Uint64
	saved    atomic.Uint64
	closed   atomic.Uint64
	changes  atomic.Uint64
	failures atomic.Uint64

	loadCount   atomic.Uint64
	loadTotalNs atomic.Int64
	loadMaxNs   atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordLoad records a successful open and its duration.
func (m *Metrics) RecordLoad(duration time.Duration) {
	ns := duration.Nanoseconds()
	m.opened.Add(1)
	m.loadCount.Add(1)
	m.loadTotalNs.Add(ns)

	// Update max (atomic compare-and-swap loop)
	for {
		old := m.loadMaxNs.Load()
		if ns <= old || m.loadMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordCreate records a document created in memory.
func (m *Metrics) RecordCreate() { m.opened.Add(1) }

// RecordSave records a save.
func (m *Metrics) RecordSave() { m.saved.Add(1) }

// RecordClose records a close.
func (m *Metrics) RecordClose() { m.closed.Add(1) }

// RecordChange records a document change notification.
func (m *Metrics) RecordChange() { m.changes.Add(1) }

// RecordFailure records a reported edit failure.
func (m *Metrics) RecordFailure() { m.failures.Add(1) }

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	loads := m.loadCount.Load()
	var avg int64
	if loads > 0 {
		avg = m.loadTotalNs.Load() / int64(loads)
	}
	return MetricsSnapshot{
		Uptime:    time.Since(m.startTime),
		Opened:    m.opened.Load(),
		Saved:     m.saved.Load(),
		Closed:    m.closed.Load(),
		Changes:   m.changes.Load(),
		Failures:  m.failures.Load(),
		AvgLoadNs: avg,
		MaxLoadNs: m.loadMaxNs.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime    time.Duration
	Opened    uint64
	Saved     uint64
	Closed    uint64
	Changes   uint64
	Failures  uint64
	AvgLoadNs int64
	MaxLoadNs int64
}

// Open returns the number of documents currently open.
func (s MetricsSnapshot) Open() uint64 {
	if s.Closed > s.Opened {
		return 0
	}
	return s.Opened - s.Closed
}

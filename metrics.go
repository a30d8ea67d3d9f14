package gatehouse

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics system.
type MetricID int

const (
	MetricRegisterSuccess MetricID = iota
	MetricLoginSuccess
	MetricLoginFailure
	MetricTwoFactorRequired
	MetricTwoFactorSuccess
	MetricTwoFactorFailure
	MetricTwoFactorCodeSent
	MetricTwoFactorCodeSkipped
	MetricRecoveryCodeUsed
	MetricRefreshSuccess
	MetricRefreshRejected
	MetricAccessRevokedReject
	MetricLogout
	MetricLogoutAll
	MetricStepUpIssued
	MetricStepUpDenied
	MetricVerificationSent
	MetricPasswordResetSent

	metricIDCount
)

// Metrics holds atomic counters. All operations are no-ops when disabled, so
// the engine increments unconditionally on its paths.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter. Hosts export snapshots to whatever metrics
// backend they run.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}

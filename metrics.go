package goVolunteer

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed logins.
	MetricLoginFailure
	// MetricRegisterSuccess counts successful registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts failed registrations.
	MetricRegisterFailure
	// MetricHydrateSuccess counts hydrations that loaded a user.
	MetricHydrateSuccess
	// MetricHydrateFailure counts hydrations that forced a logout.
	MetricHydrateFailure
	// MetricHydrateShared counts callers that joined an in-flight hydration.
	MetricHydrateShared
	// MetricHydrateExpired counts stored credentials rejected locally as expired.
	MetricHydrateExpired
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricUnauthorizedLogout counts logouts forced by a 401 from the backend.
	MetricUnauthorizedLogout
	// MetricNavigationAllowed counts allowed transitions.
	MetricNavigationAllowed
	// MetricNavigationDenied counts denied transitions.
	MetricNavigationDenied
	// MetricDeniedAuthRequired counts denials for unauthenticated sessions.
	MetricDeniedAuthRequired
	// MetricDeniedOrganizationOnly counts denials of organization-only routes.
	MetricDeniedOrganizationOnly
	// MetricDeniedVolunteerOnly counts denials of volunteer-only routes.
	MetricDeniedVolunteerOnly
	// MetricDeniedAdminOnly counts denials of admin-only routes.
	MetricDeniedAdminOnly
	// MetricNavigationNotFound counts transitions to undeclared paths.
	MetricNavigationNotFound
	// MetricHydrateLatency is the histogram of current-user fetch latency.
	MetricHydrateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters and an optional hydrate latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metrics set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id. Unknown ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only [MetricHydrateLatency]
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricHydrateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. Disabled metrics produce an
// empty snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricHydrateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricHydrateLatency].buckets[i])
		}
		s.Histograms[MetricHydrateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

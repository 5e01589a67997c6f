package ghWeb

import "sync/atomic"

// MetricID indexes one client counter.
type MetricID uint16

const (
	// MetricCallSuccess counts calls that returned a typed result.
	MetricCallSuccess MetricID = iota
	// MetricCallFailure counts calls surfaced as errors of any kind.
	MetricCallFailure
	// MetricRetry counts backoff retries across all calls.
	MetricRetry
	// MetricNetworkError counts transport-level failures.
	MetricNetworkError
	// MetricHTTPError counts non-2xx responses surfaced to callers.
	MetricHTTPError
	// MetricAuthHandshake counts login handshakes actually performed.
	MetricAuthHandshake
	// MetricAuthRefresh counts forced session refreshes after 401/403.
	MetricAuthRefresh
	// MetricAuthFailure counts rejected handshakes.
	MetricAuthFailure
	// MetricSessionRestored counts sessions resumed from the store.
	MetricSessionRestored
	// MetricDriftDetected counts responses with a non-clean report.
	MetricDriftDetected
	// MetricDriftInfo counts clean responses that still carried extra
	// fields.
	MetricDriftInfo

	metricCount
)

var metricNames = map[MetricID]string{
	MetricCallSuccess:     "call_success",
	MetricCallFailure:     "call_failure",
	MetricRetry:           "retry",
	MetricNetworkError:    "network_error",
	MetricHTTPError:       "http_error",
	MetricAuthHandshake:   "auth_handshake",
	MetricAuthRefresh:     "auth_refresh",
	MetricAuthFailure:     "auth_failure",
	MetricSessionRestored: "session_restored",
	MetricDriftDetected:   "drift_detected",
	MetricDriftInfo:       "drift_info",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if name, ok := metricNames[id]; ok {
		return name
	}
	return "unknown"
}

// Metrics is a fixed set of in-process counters. Increments are atomic
// and never block a call; there is no exporter, only Snapshot.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics builds an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc bumps one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}

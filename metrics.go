package keynotify

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter or histogram.
type MetricID uint16

const (
	// MetricRequestSuccess counts calls that resolved.
	MetricRequestSuccess MetricID = iota
	// MetricRequestFailure counts calls that rejected, whatever the kind.
	MetricRequestFailure
	// MetricRequestRetry counts individual re-sends.
	MetricRequestRetry
	// MetricRequestExhausted counts calls that failed after all retries.
	MetricRequestExhausted
	// MetricEnvelopeFailure counts 2xx responses carrying an error code.
	MetricEnvelopeFailure
	// MetricUnauthorized counts 401 responses.
	MetricUnauthorized
	// MetricSessionRevoked counts revocations applied to the session store.
	MetricSessionRevoked
	// MetricLogin counts successful Session.Login calls.
	MetricLogin
	// MetricLoginFailure counts rejected login-or-register submissions.
	MetricLoginFailure
	// MetricLogout counts Session.Logout calls.
	MetricLogout
	// MetricVerifySuccess counts startup verifications confirmed by the server.
	MetricVerifySuccess
	// MetricVerifyRejected counts startup verifications that purged the token.
	MetricVerifyRejected
	// MetricVerifyDegraded counts startup verifications kept on a transient failure.
	MetricVerifyDegraded
	// MetricUsernameCheck counts check-status calls issued by the login flow.
	MetricUsernameCheck
	// MetricUsernameCheckStale counts check-status responses discarded as out of date.
	MetricUsernameCheckStale
	// MetricRequestLatency is the per-call latency histogram.
	MetricRequestLatency
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

// Metrics holds lock-free counters. A nil *Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by keynotify APIs.
//
// MetricsSnapshot instances are point-in-time copies and are never updated after creation.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram. Only MetricRequestLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRequestLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

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
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}
	return s
}

// Buckets are upper bounds: 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}

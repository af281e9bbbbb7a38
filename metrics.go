package factorgate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID uint16

const (
	// MetricEnrollSuccess counts committed enrollments.
	MetricEnrollSuccess MetricID = iota
	// MetricEnrollRejected counts enrollments refused by validation.
	MetricEnrollRejected
	// MetricEnrollRollback counts enrollments rolled back after a durable-store failure.
	MetricEnrollRollback
	// MetricEnrollCacheMirrorFailure counts non-fatal cache mirror failures.
	MetricEnrollCacheMirrorFailure
	// MetricSessionCreated counts created verification sessions.
	MetricSessionCreated
	// MetricSessionBlocked counts sessions vetoed by threat policy.
	MetricSessionBlocked
	// MetricSessionDegraded counts sessions created in degraded mode.
	MetricSessionDegraded
	// MetricSessionRateLimited counts sessions vetoed by the rate limiter.
	MetricSessionRateLimited
	// MetricSessionFraudVeto counts sessions vetoed by the fraud heuristic.
	MetricSessionFraudVeto
	// MetricSessionNotEnrolled counts session attempts for unenrolled identities.
	MetricSessionNotEnrolled
	// MetricFactorAccepted counts accepted factor submissions.
	MetricFactorAccepted
	// MetricFactorRejected counts protocol-violating factor submissions.
	MetricFactorRejected
	// MetricVerifySuccess counts sessions that evaluated to success.
	MetricVerifySuccess
	// MetricVerifyRetryable counts failed evaluations that left the session open.
	MetricVerifyRetryable
	// MetricVerifyTerminal counts sessions evicted at the attempt cap.
	MetricVerifyTerminal
	// MetricVerifyExpired counts sessions that expired.
	MetricVerifyExpired
	// MetricSessionCancelled counts explicit session cancellations.
	MetricSessionCancelled
	// MetricRemotePrimaryUsed counts operations served by the remote primary.
	MetricRemotePrimaryUsed
	// MetricRemoteFallback counts operations served by the local fallback.
	MetricRemoteFallback
	// MetricProofGenerated counts successful proof generations.
	MetricProofGenerated
	// MetricProofFailed counts non-fatal proof generation failures.
	MetricProofFailed
	// MetricVerifyLatency is the submit-and-evaluate latency histogram.
	MetricVerifyLatency

	metricIDCount
)

const histBucketCount = 8

// paddedCounter keeps each hot counter on its own cache line.
type paddedCounter struct {
	value uint64
	_     [56]byte
}

type histogram struct {
	buckets [histBucketCount]uint64
}

// Metrics holds atomic counters and optional latency histograms. When
// disabled, all operations are no-ops.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]histogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig].
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one latency sample. Only MetricVerifyLatency carries a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all metrics.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
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

package authkit

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a single engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a token pair.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected for bad credentials.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected inside a full window.
	MetricLoginRateLimited
	// MetricLoginLocked counts logins rejected during an active lockout.
	MetricLoginLocked
	// MetricMFARequired counts password-valid logins paused for a second factor.
	MetricMFARequired
	// MetricMFASuccess counts second-factor verifications that passed.
	MetricMFASuccess
	// MetricMFAFailure counts second-factor verifications that failed.
	MetricMFAFailure
	// MetricBackupCodeUsed counts logins completed with a backup code.
	MetricBackupCodeUsed
	// MetricRefreshSuccess counts refresh rotations that minted a new pair.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh attempts with an unusable token.
	MetricRefreshFailure
	// MetricTokenRevoked counts tokens added to the revocation store.
	MetricTokenRevoked
	// MetricAuthenticateSuccess counts access tokens accepted by Authenticate.
	MetricAuthenticateSuccess
	// MetricAuthenticateRejected counts access tokens rejected by Authenticate.
	MetricAuthenticateRejected
	// MetricPasswordUpgraded counts stored hashes rewritten to current parameters.
	MetricPasswordUpgraded
	// MetricLimiterFailOpen counts limiter backend failures that were bypassed.
	MetricLimiterFailOpen
	// MetricRevocationMirrorFailed counts revocation checks or writes that
	// could not reach the shared tier and ran on the local map alone.
	MetricRevocationMirrorFailed
	// MetricAuthenticateLatency is the histogram for Authenticate duration.
	MetricAuthenticateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's atomic counters and latency buckets.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// Snapshot is a point-in-time copy of all counters and histograms.
type Snapshot struct {
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

func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthenticateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
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

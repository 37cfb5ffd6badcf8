package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram slot in [Metrics].
type MetricID uint16

const (
	// MetricTokenIssued counts tokens signed by the lifecycle cache.
	MetricTokenIssued MetricID = iota
	// MetricTokenReused counts GetOrCreate calls answered with a cached fresh token.
	MetricTokenReused
	// MetricTokenReplacedStale counts replacements of tokens inside the refresh buffer.
	MetricTokenReplacedStale
	// MetricTokenReplacedExpired counts replacements of expired cached tokens.
	MetricTokenReplacedExpired
	// MetricTokenRefreshed counts forced refreshes.
	MetricTokenRefreshed
	// MetricTokenInvalidated counts invalidations that removed an entry.
	MetricTokenInvalidated
	// MetricTokenIssueFailure counts signing failures.
	MetricTokenIssueFailure
	// MetricCacheUnavailable counts operations that ran against a closed cache.
	MetricCacheUnavailable
	// MetricCacheEvictedCapacity counts entries evicted to stay under MaxEntries.
	MetricCacheEvictedCapacity
	// MetricCacheEvictedTTL counts entries dropped for exceeding the hard TTL.
	MetricCacheEvictedTTL
	// MetricCacheEvictedExpired counts expired entries removed by the sweeper.
	MetricCacheEvictedExpired
	// MetricVerifySuccess counts tokens accepted by Verify or Authenticate.
	MetricVerifySuccess
	// MetricVerifyExpired counts authentic tokens rejected as expired.
	MetricVerifyExpired
	// MetricVerifyMalformed counts tokens that could not be decoded.
	MetricVerifyMalformed
	// MetricVerifySignatureInvalid counts tokens whose signature did not verify.
	MetricVerifySignatureInvalid
	// MetricVerifyRevoked counts strict-mode rejections of superseded tokens.
	MetricVerifyRevoked
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess
	// MetricLoginFailure counts logins rejected for bad credentials.
	MetricLoginFailure
	// MetricLoginThrottled counts logins refused by the failed-attempt throttle.
	MetricLoginThrottled
	// MetricLogout counts logout calls.
	MetricLogout
	// MetricRefreshSuccess counts successful RefreshToken calls.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed RefreshToken calls.
	MetricRefreshFailure
	// MetricVerifyLatency is the only histogram: Authenticate latency.
	MetricVerifyLatency
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

// Metrics holds lock-free counters and the optional verification latency
// histogram. A nil or disabled Metrics ignores every update.
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

// NewMetrics creates a Metrics configured by cfg.
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

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricVerifyLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
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

// Snapshot copies every counter and, when enabled, the latency buckets.
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

// Token verification is sub-millisecond, so the buckets are finer than a
// request-latency histogram.
func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 50:
		return 0
	case us <= 100:
		return 1
	case us <= 250:
		return 2
	case us <= 500:
		return 3
	case us <= 1000:
		return 4
	case us <= 5000:
		return 5
	case us <= 25000:
		return 6
	default:
		return 7
	}
}

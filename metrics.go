package gatekeep

import (
	"errors"
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricAuthSuccess counts requests that resolved to an identity.
	MetricAuthSuccess MetricID = iota
	// MetricAuthMissingToken counts requests with no Authorization header on protected routes.
	MetricAuthMissingToken
	// MetricAuthMalformedToken counts header or token shape failures.
	MetricAuthMalformedToken
	// MetricAuthTokenNotFound counts opaque tokens with no live session.
	MetricAuthTokenNotFound
	// MetricAuthInvalidToken counts signed tokens that failed verification.
	MetricAuthInvalidToken
	// MetricAuthTokenExpired counts signed tokens past exp.
	MetricAuthTokenExpired
	// MetricAuthStorageError counts store failures during authentication.
	MetricAuthStorageError
	// MetricRoleDenied counts role checks that rejected the caller.
	MetricRoleDenied
	// MetricOwnerDenied counts ownership checks that rejected the caller.
	MetricOwnerDenied
	// MetricRateLimitHit counts requests rejected by the limiter.
	MetricRateLimitHit
	// MetricRateLimitError counts limiter backend failures.
	MetricRateLimitError
	// MetricSessionIssued counts tokens issued by Login.
	MetricSessionIssued
	// MetricSessionRevoked counts successful logouts.
	MetricSessionRevoked
	// MetricRenewSuccess counts sliding renewals that refreshed a TTL.
	MetricRenewSuccess
	// MetricRenewFailure counts renewals that failed or found no session.
	MetricRenewFailure
	// MetricValidateLatency is the latency histogram for Authenticate.
	MetricValidateLatency
	metricIDCount
)

// LatencyBounds are the inclusive upper bounds of the Authenticate latency buckets.
// A final overflow bucket holds everything slower.
var LatencyBounds = [...]time.Duration{
	250 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	2500 * time.Microsecond,
	5 * time.Millisecond,
	25 * time.Millisecond,
	100 * time.Millisecond,
}

// LatencyBucketCount is len(LatencyBounds) plus the overflow bucket.
const LatencyBucketCount = len(LatencyBounds) + 1

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets  [LatencyBucketCount]uint64
	sumNanos uint64
}

func (h *latencyHistogram) observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	atomic.AddUint64(&h.buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&h.sumNanos, uint64(d))
}

// Metrics holds lock-free engine counters. A nil or disabled Metrics ignores writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
	// Histograms holds per-bucket (non-cumulative) counts, LatencyBucketCount long.
	Histograms map[MetricID][]uint64
	// HistogramSums holds the total observed duration per histogram.
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics creates a counter set from cfg.
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

// LatencyEnabled reports whether the validate-latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
//
//	Performance: one atomic add, no allocation.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for id. Only [MetricValidateLatency] is a histogram; other ids
// are ignored.
//
//	Performance: two atomic adds, no allocation.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.latency.observe(d)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricValidateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, LatencyBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
		s.HistogramSums[MetricValidateLatency] = time.Duration(atomic.LoadUint64(&m.latency.sumNanos))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}

// metricForError maps an authentication failure onto its counter.
func metricForError(err error) (MetricID, bool) {
	switch {
	case err == nil:
		return MetricAuthSuccess, true
	case errors.Is(err, ErrMissingToken):
		return MetricAuthMissingToken, true
	case errors.Is(err, ErrMalformedToken):
		return MetricAuthMalformedToken, true
	case errors.Is(err, ErrTokenNotFound):
		return MetricAuthTokenNotFound, true
	case errors.Is(err, ErrTokenExpired):
		return MetricAuthTokenExpired, true
	case errors.Is(err, ErrInvalidToken):
		return MetricAuthInvalidToken, true
	case errors.Is(err, ErrStorage):
		return MetricAuthStorageError, true
	case errors.Is(err, ErrInsufficientRole):
		return MetricRoleDenied, true
	case errors.Is(err, ErrNotOwner):
		return MetricOwnerDenied, true
	case errors.Is(err, ErrRateLimitExceeded):
		return MetricRateLimitHit, true
	default:
		return 0, false
	}
}

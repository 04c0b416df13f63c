package gatekeep

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricAuthSuccess)

	if got := m.Value(MetricAuthSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricAuthSuccess)
	m.Inc(MetricAuthSuccess)
	m.Inc(MetricAuthSuccess)

	if got := m.Value(MetricAuthSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRenewSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRenewSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	var sum time.Duration
	for _, bound := range LatencyBounds {
		m.Observe(MetricValidateLatency, bound)
		sum += bound
	}
	m.Observe(MetricValidateLatency, time.Second)
	sum += time.Second
	// Only the validate histogram exists.
	m.Observe(MetricAuthSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != LatencyBucketCount {
		t.Fatalf("expected %d buckets, got %d", LatencyBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if got := snap.HistogramSums[MetricValidateLatency]; got != sum {
		t.Fatalf("expected sum %s, got %s", sum, got)
	}
	if _, ok := snap.Histograms[MetricAuthSuccess]; ok {
		t.Fatal("unexpected histogram for a counter id")
	}
}

func TestMetricsLatencyDisabledKeepsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricValidateLatency, time.Millisecond)
	m.Inc(MetricSessionIssued)

	snap := m.Snapshot()
	if len(snap.Histograms) != 0 || len(snap.HistogramSums) != 0 {
		t.Fatalf("expected no histograms, got %v", snap.Histograms)
	}
	if snap.Counters[MetricSessionIssued] != 1 {
		t.Fatalf("expected 1 issued, got %d", snap.Counters[MetricSessionIssued])
	}
}

func TestAuthenticateRecordsLatency(t *testing.T) {
	engine, _, _ := newEngineTest(t, func(cfg *Config) {
		cfg.Metrics.EnableLatencyHistograms = true
	})
	ctx := context.Background()

	issued, err := engine.Login(ctx, LoginRequest{SubjectID: "u-1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := engine.Authenticate(ctx, issued.Token); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	snap := engine.MetricsSnapshot()
	var total uint64
	for _, v := range snap.Histograms[MetricValidateLatency] {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected 1 latency sample, got %d", total)
	}
	if snap.Counters[MetricSessionIssued] != 1 {
		t.Fatalf("expected 1 issued session, got %d", snap.Counters[MetricSessionIssued])
	}
}

package goSession

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricTokenIssued)
	m.Observe(MetricVerifyLatency, time.Millisecond)
	if m.Value(MetricTokenIssued) != 0 || m.Enabled() {
		t.Fatal("nil metrics must be inert")
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
				m.Inc(MetricTokenReused)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricTokenReused); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		20 * time.Microsecond,
		80 * time.Microsecond,
		200 * time.Microsecond,
		400 * time.Microsecond,
		900 * time.Microsecond,
		3 * time.Millisecond,
		20 * time.Millisecond,
		time.Second,
	}
	for _, d := range observations {
		m.Observe(MetricVerifyLatency, d)
	}
	// Only the verification latency has a histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricVerifyLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsHistogramRequiresLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricVerifyLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricVerifyLatency]; ok {
		t.Fatal("histogram must be absent when latency histograms are off")
	}
}

func TestEngineCountsAuthenticateOutcomes(t *testing.T) {
	e, _ := newTestEngine(t, newTestClock(), engineOptions{
		mutate: func(c *Config) { c.Metrics.EnableLatencyHistograms = true },
	})
	ctx := context.Background()

	res, err := e.GetOrCreate(ctx, "john")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	_, _ = e.Authenticate(ctx, res.Token, ModeStrict)
	_, _ = e.Authenticate(ctx, "garbage", ModeJWTOnly)
	e.Invalidate(ctx, "john")
	_, _ = e.Authenticate(ctx, res.Token, ModeStrict)

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("expected 1 success, got %d", snap.Counters[MetricVerifySuccess])
	}
	if snap.Counters[MetricVerifyMalformed] != 1 {
		t.Fatalf("expected 1 malformed, got %d", snap.Counters[MetricVerifyMalformed])
	}
	if snap.Counters[MetricVerifyRevoked] != 1 {
		t.Fatalf("expected 1 revoked, got %d", snap.Counters[MetricVerifyRevoked])
	}
	if snap.Counters[MetricTokenInvalidated] != 1 {
		t.Fatalf("expected 1 invalidation, got %d", snap.Counters[MetricTokenInvalidated])
	}

	var observed uint64
	for _, v := range snap.Histograms[MetricVerifyLatency] {
		observed += v
	}
	if observed != 3 {
		t.Fatalf("expected 3 latency observations, got %d", observed)
	}
}

func TestEngineCountsCapacityEvictions(t *testing.T) {
	e, _ := newTestEngine(t, newTestClock(), engineOptions{
		mutate: func(c *Config) {
			c.Cache.MaxEntries = 2
			c.Cache.Shards = 1
		},
	})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := e.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("get or create %s: %v", id, err)
		}
	}
	if got := e.MetricsSnapshot().Counters[MetricCacheEvictedCapacity]; got != 1 {
		t.Fatalf("expected one capacity eviction, got %d", got)
	}
	if e.HasValidToken("a") {
		t.Fatal("least recently used identity should have been evicted")
	}
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricVerifySuccess)
		}
	})
}

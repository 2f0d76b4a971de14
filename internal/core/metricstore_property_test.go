package core

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// *For any* sequence of records into a store with capacity C, no per-name
// buffer SHALL ever hold more than C events, and the survivors SHALL be the
// most recent ones.
func TestProperty_RingBufferNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(rt, "capacity")
		store := NewMetricStore(capacity, DefaultThresholds())

		total := rapid.IntRange(0, 100).Draw(rt, "total")
		for i := 0; i < total; i++ {
			store.RecordGauge("queue.depth", float64(i), nil)
		}

		count := store.Count("queue.depth", time.Hour)
		want := total
		if want > capacity {
			want = capacity
		}
		if count != want {
			rt.Fatalf("count = %d, want %d", count, want)
		}

		// FIFO eviction: the remaining values are the newest `want` records.
		if want > 0 {
			wantSum := 0.0
			for i := total - want; i < total; i++ {
				wantSum += float64(i)
			}
			if got := store.Sum("queue.depth", time.Hour); got != wantSum {
				rt.Fatalf("sum = %v, want %v", got, wantSum)
			}
		}
	})
}

// *For any* mix of metric values, the health score SHALL stay within [0, 100].
func TestProperty_HealthScoreStaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewMetricStore(1000, DefaultThresholds())

		started := rapid.IntRange(0, 20).Draw(rt, "started")
		completed := rapid.IntRange(0, started).Draw(rt, "completed")
		for i := 0; i < started; i++ {
			store.TrackOnboardingStarted(fmt.Sprintf("user-%d", i))
		}
		for i := 0; i < completed; i++ {
			store.TrackOnboardingCompleted(fmt.Sprintf("user-%d", i), time.Minute)
		}

		impressions := rapid.IntRange(0, 20).Draw(rt, "impressions")
		clicks := rapid.IntRange(0, impressions).Draw(rt, "clicks")
		for i := 0; i < impressions; i++ {
			store.TrackButtonImpression("scan_flights")
		}
		for i := 0; i < clicks; i++ {
			store.TrackButtonClick("scan_flights")
		}

		requests := rapid.IntRange(0, 20).Draw(rt, "requests")
		errors := rapid.IntRange(0, 20).Draw(rt, "errors")
		latency := rapid.Float64Range(0, 10000).Draw(rt, "latency")
		for i := 0; i < requests; i++ {
			store.TrackResponseTime("scan", latency)
		}
		for i := 0; i < errors; i++ {
			store.TrackError("boom")
		}

		report := store.GenerateReport(24 * time.Hour)
		if report.HealthScore < 0 || report.HealthScore > 100 {
			rt.Fatalf("health score = %v, want within [0, 100]", report.HealthScore)
		}
	})
}

// *For any* series of breaching reads, every alert SHALL get a distinct id and
// alerts SHALL accumulate one per read.
func TestProperty_AlertsAccumulatePerBreachingRead(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewMetricStore(1000, DefaultThresholds())
		store.TrackOnboardingStarted("user-0")

		reads := rapid.IntRange(1, 15).Draw(rt, "reads")
		for i := 0; i < reads; i++ {
			store.OnboardingCompletionRate(time.Hour)
		}

		alerts := store.Alerts(true)
		if len(alerts) != reads {
			rt.Fatalf("alerts = %d, want %d", len(alerts), reads)
		}
		seen := make(map[string]bool, len(alerts))
		for _, a := range alerts {
			if seen[a.ID] {
				rt.Fatalf("duplicate alert id %q", a.ID)
			}
			seen[a.ID] = true
			if a.Severity != models.SeverityWarning {
				rt.Fatalf("severity = %q, want warning", a.Severity)
			}
		}
	})
}

// *For any* recorded values, the nearest-rank percentile SHALL be one of the
// recorded values and SHALL lie between the minimum and maximum.
func TestProperty_PercentileIsARecordedValue(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewMetricStore(1000, DefaultThresholds())

		n := rapid.IntRange(1, 50).Draw(rt, "n")
		values := make(map[float64]bool, n)
		min, max := 0.0, 0.0
		for i := 0; i < n; i++ {
			v := rapid.Float64Range(0, 5000).Draw(rt, fmt.Sprintf("v%d", i))
			store.TrackResponseTime("scan", v)
			values[v] = true
			if i == 0 || v < min {
				min = v
			}
			if i == 0 || v > max {
				max = v
			}
		}

		p := rapid.Float64Range(0, 100).Draw(rt, "p")
		got := store.Percentile(MetricResponseTime, time.Hour, p)
		if !values[got] {
			rt.Fatalf("percentile %v = %v, not a recorded value", p, got)
		}
		if got < min || got > max {
			rt.Fatalf("percentile %v = %v, outside [%v, %v]", p, got, min, max)
		}
	})
}

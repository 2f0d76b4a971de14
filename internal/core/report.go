package core

import (
	"math"
	"sort"
	"time"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// TopButtonLimit caps the ranked button list in a report.
const TopButtonLimit = 5

// OnboardingStats is the onboarding subsection of a metrics report.
type OnboardingStats struct {
	Started        int     `json:"started"`
	Completed      int     `json:"completed"`
	Skipped        int     `json:"skipped"`
	CompletionRate float64 `json:"completion_rate"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
}

// ButtonCount is one entry in the ranked button list.
type ButtonCount struct {
	Button string `json:"button"`
	Clicks int    `json:"clicks"`
}

// ButtonStats is the buttons subsection of a metrics report.
type ButtonStats struct {
	CTR              float64       `json:"ctr"`
	TotalClicks      int           `json:"total_clicks"`
	TotalImpressions int           `json:"total_impressions"`
	Top              []ButtonCount `json:"top"`
}

// PerformanceStats is the performance subsection of a metrics report.
type PerformanceStats struct {
	AvgResponseMS float64 `json:"avg_response_ms"`
	P95ResponseMS float64 `json:"p95_response_ms"`
	ErrorRate     float64 `json:"error_rate"`
	ErrorCount    int     `json:"error_count"`
}

// MetricsReport is a point-in-time snapshot of the watched metrics over a
// window, with a single 0-100 health score and fixed rule-based
// recommendations.
type MetricsReport struct {
	Generated       time.Time        `json:"generated"`
	WindowHours     float64          `json:"window_hours"`
	Onboarding      OnboardingStats  `json:"onboarding"`
	Buttons         ButtonStats      `json:"buttons"`
	Performance     PerformanceStats `json:"performance"`
	HealthScore     float64          `json:"health_score"`
	Recommendations []string         `json:"recommendations"`
}

// GenerateReport builds a MetricsReport for the window. Reading the watched
// derived metrics here carries their usual side effect: threshold breaches
// append alerts.
func (s *MetricStore) GenerateReport(window time.Duration) *MetricsReport {
	completionRate := s.OnboardingCompletionRate(window)
	ctr := s.ButtonCTR(window)
	errorRate := s.ErrorRate(window)
	avgResponse := s.AvgResponseTime(window)
	s.CacheHitRate(window)

	s.mu.Lock()
	defer s.mu.Unlock()

	report := &MetricsReport{
		Generated:   s.now(),
		WindowHours: window.Hours(),
		Onboarding: OnboardingStats{
			Started:        len(s.inWindow(MetricOnboardingStarted, window)),
			Completed:      len(s.inWindow(MetricOnboardingCompleted, window)),
			Skipped:        len(s.inWindow(MetricOnboardingSkipped, window)),
			CompletionRate: completionRate,
			AvgDurationSec: avg(s.inWindow(MetricOnboardingDuration, window)),
		},
		Buttons: ButtonStats{
			CTR:              ctr,
			TotalClicks:      len(s.inWindow(MetricButtonClick, window)),
			TotalImpressions: len(s.inWindow(MetricButtonImpression, window)),
			Top:              s.topButtons(window, TopButtonLimit),
		},
		Performance: PerformanceStats{
			AvgResponseMS: avgResponse,
			P95ResponseMS: percentileOf(s.inWindow(MetricResponseTime, window), 95),
			ErrorRate:     errorRate,
			ErrorCount:    len(s.inWindow(MetricError, window)),
		},
	}

	report.HealthScore = s.healthScore(report)
	report.Recommendations = s.recommendations(report)
	return report
}

// topButtons ranks buttons by click count, ties broken by first-occurrence
// insertion order. Callers must hold the mutex.
func (s *MetricStore) topButtons(window time.Duration, limit int) []ButtonCount {
	counts := make(map[string]int)
	var order []string
	for _, ev := range s.inWindow(MetricButtonClick, window) {
		button := ev.Tags["button"]
		if _, seen := counts[button]; !seen {
			order = append(order, button)
		}
		counts[button]++
	}

	ranked := make([]ButtonCount, 0, len(order))
	for _, button := range order {
		ranked = append(ranked, ButtonCount{Button: button, Clicks: counts[button]})
	}
	// Stable sort preserves first-occurrence order between equal counts.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Clicks > ranked[j].Clicks
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// healthScore computes 100 minus weighted penalties, clamped to [0,100]:
// completion-rate deficit x100, CTR deficit x50, error-rate excess x500,
// response-time excess (ms over threshold) / 100.
func (s *MetricStore) healthScore(r *MetricsReport) float64 {
	score := 100.0
	if deficit := s.thresholds.MinCompletionRate - r.Onboarding.CompletionRate; deficit > 0 {
		score -= deficit * 100
	}
	if deficit := s.thresholds.MinButtonCTR - r.Buttons.CTR; deficit > 0 {
		score -= deficit * 50
	}
	if excess := r.Performance.ErrorRate - s.thresholds.MaxErrorRate; excess > 0 {
		score -= excess * 500
	}
	if excess := r.Performance.AvgResponseMS - s.thresholds.MaxResponseTimeMS; excess > 0 {
		score -= excess / 100
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// recommendations applies the fixed rule table to the report.
func (s *MetricStore) recommendations(r *MetricsReport) []string {
	var recs []string
	if r.Onboarding.Started > 0 && r.Onboarding.CompletionRate < s.thresholds.MinCompletionRate {
		recs = append(recs, "Simplify the onboarding flow: completion rate is below target")
	}
	if r.Onboarding.AvgDurationSec > 120 {
		recs = append(recs, "Shorten onboarding: average duration exceeds two minutes")
	}
	if r.Buttons.TotalImpressions > 0 && r.Buttons.CTR < s.thresholds.MinButtonCTR {
		recs = append(recs, "Review button labels and placement: click-through rate is below target")
	}
	if r.Performance.ErrorRate > s.thresholds.MaxErrorRate {
		recs = append(recs, "Investigate recent errors: error rate is above target")
	}
	if r.Performance.AvgResponseMS > s.thresholds.MaxResponseTimeMS {
		recs = append(recs, "Profile slow handlers: average response time is above target")
	}
	if len(recs) == 0 {
		recs = append(recs, "All watched metrics are within targets")
	}
	return recs
}

func avg(events []models.MetricEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	return sum(events) / float64(len(events))
}

// percentileOf computes the nearest-rank pth percentile of the event values.
func percentileOf(events []models.MetricEvent, p float64) float64 {
	if len(events) == 0 {
		return 0
	}
	values := make([]float64, len(events))
	for i, ev := range events {
		values[i] = ev.Value
	}
	sort.Float64s(values)
	rank := int(math.Ceil(p / 100 * float64(len(values))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(values) {
		rank = len(values)
	}
	return values[rank-1]
}

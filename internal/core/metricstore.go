// Package core contains the business logic for Growth Brain: the metric
// store, the A/B experiment engine, and the optimization controller that
// turns both signals into a prioritized action backlog.
package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// Well-known metric names recorded by the domain wrappers.
const (
	MetricOnboardingStarted   = "onboarding.started"
	MetricOnboardingStep      = "onboarding.step"
	MetricOnboardingCompleted = "onboarding.completed"
	MetricOnboardingSkipped   = "onboarding.skipped"
	MetricOnboardingDuration  = "onboarding.duration"
	MetricButtonImpression    = "button.impression"
	MetricButtonClick         = "button.click"
	MetricError               = "app.error"
	MetricResponseTime        = "response.time"
	MetricCacheHit            = "cache.hit"
	MetricCacheMiss           = "cache.miss"
)

// DefaultBufferSize caps each per-name event buffer when no explicit
// capacity is configured.
const DefaultBufferSize = 10000

// DefaultThresholds returns the static threshold table for watched metrics.
func DefaultThresholds() models.AlertThresholds {
	return models.AlertThresholds{
		MinCompletionRate: 0.60,
		MinButtonCTR:      0.50,
		MaxErrorRate:      0.05,
		MaxResponseTimeMS: 2000,
		MinCacheHitRate:   0.60,
	}
}

// MetricStore ingests metric events into bounded per-name buffers and computes
// windowed aggregates on demand. Watched derived metrics raise threshold
// alerts as a side effect of the read; repeated reads under a sustained breach
// raise duplicate alerts.
//
// All operations serialize behind one coarse mutex. Critical sections are
// short and never perform I/O.
type MetricStore struct {
	mu         sync.Mutex
	capacity   int
	events     map[string][]models.MetricEvent
	nameOrder  []string
	thresholds models.AlertThresholds
	alerts     []models.Alert
	alertSeq   int
	now        func() time.Time
}

// NewMetricStore creates a MetricStore with the given per-name buffer capacity
// and threshold table. A capacity of zero or less falls back to
// DefaultBufferSize.
func NewMetricStore(capacity int, thresholds models.AlertThresholds) *MetricStore {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &MetricStore{
		capacity:   capacity,
		events:     make(map[string][]models.MetricEvent),
		thresholds: thresholds,
		now:        time.Now,
	}
}

// SetClock overrides the store's time source. Intended for tests.
func (s *MetricStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Record appends an event to the named buffer, evicting the oldest entry when
// the buffer is at capacity.
func (s *MetricStore) Record(name string, kind models.MetricKind, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(name, kind, value, tags)
}

func (s *MetricStore) record(name string, kind models.MetricKind, value float64, tags map[string]string) {
	buf, ok := s.events[name]
	if !ok {
		s.nameOrder = append(s.nameOrder, name)
	}
	if len(buf) >= s.capacity {
		n := copy(buf, buf[1:])
		buf = buf[:n]
	}
	s.events[name] = append(buf, models.MetricEvent{
		Name:  name,
		Kind:  kind,
		Value: value,
		Time:  s.now(),
		Tags:  tags,
	})
}

// RecordCounter records a counter increment.
func (s *MetricStore) RecordCounter(name string, value float64, tags map[string]string) {
	s.Record(name, models.KindCounter, value, tags)
}

// RecordGauge records a point-in-time gauge value.
func (s *MetricStore) RecordGauge(name string, value float64, tags map[string]string) {
	s.Record(name, models.KindGauge, value, tags)
}

// RecordHistogram records a histogram observation.
func (s *MetricStore) RecordHistogram(name string, value float64, tags map[string]string) {
	s.Record(name, models.KindHistogram, value, tags)
}

// --- Domain wrappers called by the bot layer ---

// TrackOnboardingStarted records a user entering the onboarding flow.
func (s *MetricStore) TrackOnboardingStarted(userID string) {
	s.RecordCounter(MetricOnboardingStarted, 1, map[string]string{"user": userID})
}

// TrackOnboardingStep records a completed onboarding step.
func (s *MetricStore) TrackOnboardingStep(userID, step string) {
	s.RecordCounter(MetricOnboardingStep, 1, map[string]string{"user": userID, "step": step})
}

// TrackOnboardingCompleted records a finished onboarding flow and its duration.
func (s *MetricStore) TrackOnboardingCompleted(userID string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(MetricOnboardingCompleted, models.KindCounter, 1, map[string]string{"user": userID})
	s.record(MetricOnboardingDuration, models.KindHistogram, duration.Seconds(), map[string]string{"user": userID})
}

// TrackOnboardingSkipped records a user skipping onboarding.
func (s *MetricStore) TrackOnboardingSkipped(userID string) {
	s.RecordCounter(MetricOnboardingSkipped, 1, map[string]string{"user": userID})
}

// TrackButtonImpression records a button being shown.
func (s *MetricStore) TrackButtonImpression(button string) {
	s.RecordCounter(MetricButtonImpression, 1, map[string]string{"button": button})
}

// TrackButtonClick records a button being pressed.
func (s *MetricStore) TrackButtonClick(button string) {
	s.RecordCounter(MetricButtonClick, 1, map[string]string{"button": button})
}

// TrackError records a handled error by type.
func (s *MetricStore) TrackError(errType string) {
	s.RecordCounter(MetricError, 1, map[string]string{"type": errType})
}

// TrackResponseTime records a request's handling latency in milliseconds.
func (s *MetricStore) TrackResponseTime(handler string, ms float64) {
	s.RecordHistogram(MetricResponseTime, ms, map[string]string{"handler": handler})
}

// TrackCacheHit records a cache hit or miss.
func (s *MetricStore) TrackCacheHit(hit bool) {
	if hit {
		s.RecordCounter(MetricCacheHit, 1, nil)
	} else {
		s.RecordCounter(MetricCacheMiss, 1, nil)
	}
}

// --- Windowed aggregates ---

// Count returns the number of events recorded for name within the window.
func (s *MetricStore) Count(name string, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inWindow(name, window))
}

// Sum returns the sum of event values for name within the window.
func (s *MetricStore) Sum(name string, window time.Duration) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sum(s.inWindow(name, window))
}

// Avg returns the mean event value for name within the window, or 0 when the
// window is empty.
func (s *MetricStore) Avg(name string, window time.Duration) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.inWindow(name, window)
	if len(events) == 0 {
		return 0
	}
	return sum(events) / float64(len(events))
}

// Rate returns events per hour for name within the window.
func (s *MetricStore) Rate(name string, window time.Duration) float64 {
	hours := window.Hours()
	if hours <= 0 {
		return 0
	}
	return float64(s.Count(name, window)) / hours
}

// Percentile returns the pth percentile (nearest-rank) of event values for
// name within the window, or 0 when the window is empty.
func (s *MetricStore) Percentile(name string, window time.Duration, p float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return percentileOf(s.inWindow(name, window), p)
}

// inWindow returns the events for name recorded within the window, oldest
// first. Callers must hold the mutex.
func (s *MetricStore) inWindow(name string, window time.Duration) []models.MetricEvent {
	cutoff := s.now().Add(-window)
	var out []models.MetricEvent
	for _, ev := range s.events[name] {
		if !ev.Time.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

func sum(events []models.MetricEvent) float64 {
	var total float64
	for _, ev := range events {
		total += ev.Value
	}
	return total
}

// --- Watched derived metrics ---

// OnboardingCompletionRate returns completed/started for the window and raises
// a warning alert when the rate falls below the threshold. Returns 0 when no
// onboarding was started.
func (s *MetricStore) OnboardingCompletionRate(window time.Duration) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	started := len(s.inWindow(MetricOnboardingStarted, window))
	if started == 0 {
		return 0
	}
	completed := len(s.inWindow(MetricOnboardingCompleted, window))
	rate := float64(completed) / float64(started)
	if rate < s.thresholds.MinCompletionRate {
		s.raiseAlert(models.SeverityWarning, "onboarding_completion_rate", rate, s.thresholds.MinCompletionRate,
			fmt.Sprintf("onboarding completion rate %.1f%% below %.0f%%", rate*100, s.thresholds.MinCompletionRate*100))
	}
	return rate
}

// ButtonCTR returns clicks/impressions for the window and raises an info alert
// when the rate falls below the threshold. Returns 0 when there were no
// impressions.
func (s *MetricStore) ButtonCTR(window time.Duration) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	impressions := len(s.inWindow(MetricButtonImpression, window))
	if impressions == 0 {
		return 0
	}
	clicks := len(s.inWindow(MetricButtonClick, window))
	ctr := float64(clicks) / float64(impressions)
	if ctr < s.thresholds.MinButtonCTR {
		s.raiseAlert(models.SeverityInfo, "button_ctr", ctr, s.thresholds.MinButtonCTR,
			fmt.Sprintf("button CTR %.1f%% below %.0f%%", ctr*100, s.thresholds.MinButtonCTR*100))
	}
	return ctr
}

// ErrorRate returns errors/requests for the window and raises an error alert
// when the rate exceeds the threshold. Returns 0 when no requests were seen.
func (s *MetricStore) ErrorRate(window time.Duration) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests := len(s.inWindow(MetricResponseTime, window))
	if requests == 0 {
		return 0
	}
	errors := len(s.inWindow(MetricError, window))
	rate := float64(errors) / float64(requests)
	if rate > s.thresholds.MaxErrorRate {
		s.raiseAlert(models.SeverityError, "error_rate", rate, s.thresholds.MaxErrorRate,
			fmt.Sprintf("error rate %.1f%% above %.0f%%", rate*100, s.thresholds.MaxErrorRate*100))
	}
	return rate
}

// AvgResponseTime returns the mean response time in milliseconds for the
// window and raises a warning alert when it exceeds the threshold.
func (s *MetricStore) AvgResponseTime(window time.Duration) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.inWindow(MetricResponseTime, window)
	if len(events) == 0 {
		return 0
	}
	avg := sum(events) / float64(len(events))
	if avg > s.thresholds.MaxResponseTimeMS {
		s.raiseAlert(models.SeverityWarning, "response_time", avg, s.thresholds.MaxResponseTimeMS,
			fmt.Sprintf("average response time %.0fms above %.0fms", avg, s.thresholds.MaxResponseTimeMS))
	}
	return avg
}

// CacheHitRate returns hits/(hits+misses) for the window and raises a warning
// alert when the rate falls below the threshold. Returns 0 when the cache saw
// no traffic.
func (s *MetricStore) CacheHitRate(window time.Duration) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := len(s.inWindow(MetricCacheHit, window))
	misses := len(s.inWindow(MetricCacheMiss, window))
	if hits+misses == 0 {
		return 0
	}
	rate := float64(hits) / float64(hits+misses)
	if rate < s.thresholds.MinCacheHitRate {
		s.raiseAlert(models.SeverityWarning, "cache_hit_rate", rate, s.thresholds.MinCacheHitRate,
			fmt.Sprintf("cache hit rate %.1f%% below %.0f%%", rate*100, s.thresholds.MinCacheHitRate*100))
	}
	return rate
}

// raiseAlert appends a new alert. Alerts are intentionally not deduplicated:
// every breaching read appends its own entry. Callers must hold the mutex.
func (s *MetricStore) raiseAlert(severity models.AlertSeverity, metric string, value, threshold float64, message string) {
	s.alertSeq++
	s.alerts = append(s.alerts, models.Alert{
		ID:        fmt.Sprintf("alert-%06d", s.alertSeq),
		Severity:  severity,
		Metric:    metric,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		Time:      s.now(),
	})
}

// Alerts returns a copy of all alerts, oldest first. When unresolvedOnly is
// set, resolved alerts are filtered out.
func (s *MetricStore) Alerts(unresolvedOnly bool) []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if unresolvedOnly && a.Resolved {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ResolveAlert marks the alert with the given id as resolved.
func (s *MetricStore) ResolveAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Resolved = true
			return nil
		}
	}
	return fmt.Errorf("%w: unknown alert id %q", models.ErrValidation, id)
}

// --- Persistence ---

// Snapshot returns a deep copy of the buffered events and alerts for
// persistence.
func (s *MetricStore) Snapshot() (map[string][]models.MetricEvent, []models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make(map[string][]models.MetricEvent, len(s.events))
	for name, buf := range s.events {
		events[name] = append([]models.MetricEvent(nil), buf...)
	}
	alerts := append([]models.Alert(nil), s.alerts...)
	return events, alerts
}

// Restore replaces the store contents from a snapshot, re-truncating each
// buffer to capacity (oldest entries dropped first).
func (s *MetricStore) Restore(events map[string][]models.MetricEvent, alerts []models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]models.MetricEvent, len(events))
	s.nameOrder = nil
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		buf := events[name]
		if len(buf) > s.capacity {
			buf = buf[len(buf)-s.capacity:]
		}
		s.events[name] = append([]models.MetricEvent(nil), buf...)
		s.nameOrder = append(s.nameOrder, name)
	}
	s.alerts = append([]models.Alert(nil), alerts...)
	s.alertSeq = len(alerts)
}

package core

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func TestGenerateReport_HealthyMetrics(t *testing.T) {
	store := NewMetricStore(1000, DefaultThresholds())

	for i := 0; i < 10; i++ {
		store.TrackOnboardingStarted(fmt.Sprintf("user-%d", i))
		store.TrackOnboardingCompleted(fmt.Sprintf("user-%d", i), 60*time.Second)
		store.TrackButtonImpression("scan_flights")
		store.TrackButtonClick("scan_flights")
		store.TrackResponseTime("scan", 200)
	}

	report := store.GenerateReport(24 * time.Hour)

	if report.Onboarding.Started != 10 || report.Onboarding.Completed != 10 {
		t.Errorf("onboarding = %d/%d, want 10/10", report.Onboarding.Started, report.Onboarding.Completed)
	}
	if report.Onboarding.CompletionRate != 1.0 {
		t.Errorf("completion rate = %v, want 1.0", report.Onboarding.CompletionRate)
	}
	if report.Buttons.CTR != 1.0 {
		t.Errorf("CTR = %v, want 1.0", report.Buttons.CTR)
	}
	if report.Performance.AvgResponseMS != 200 {
		t.Errorf("avg response = %v, want 200", report.Performance.AvgResponseMS)
	}
	if report.HealthScore != 100 {
		t.Errorf("health score = %v, want 100", report.HealthScore)
	}
	if len(report.Recommendations) != 1 || report.Recommendations[0] != "All watched metrics are within targets" {
		t.Errorf("recommendations = %v", report.Recommendations)
	}
	if report.WindowHours != 24 {
		t.Errorf("window hours = %v, want 24", report.WindowHours)
	}
}

func TestGenerateReport_PenaltiesReduceHealthScore(t *testing.T) {
	store := NewMetricStore(1000, DefaultThresholds())

	// Completion 0.5 (deficit 0.1 -> -10), CTR 0.25 (deficit 0.25 -> -12.5).
	store.TrackOnboardingStarted("u1")
	store.TrackOnboardingStarted("u2")
	store.TrackOnboardingCompleted("u1", time.Minute)
	for i := 0; i < 4; i++ {
		store.TrackButtonImpression("scan_flights")
	}
	store.TrackButtonClick("scan_flights")

	report := store.GenerateReport(24 * time.Hour)

	want := 100.0 - 10 - 12.5
	if math.Abs(report.HealthScore-want) > 1e-9 {
		t.Errorf("health score = %v, want %v", report.HealthScore, want)
	}
	if len(report.Recommendations) != 2 {
		t.Errorf("recommendations = %v, want 2 entries", report.Recommendations)
	}
}

func TestGenerateReport_HealthScoreClampsAtZero(t *testing.T) {
	store := NewMetricStore(1000, DefaultThresholds())

	// Every request errors: error-rate excess alone exceeds 100 points.
	for i := 0; i < 5; i++ {
		store.TrackResponseTime("scan", 100)
		store.TrackError("boom")
	}

	report := store.GenerateReport(24 * time.Hour)
	if report.HealthScore != 0 {
		t.Errorf("health score = %v, want 0", report.HealthScore)
	}
}

func TestGenerateReport_TopButtonsRankedByClicks(t *testing.T) {
	store := NewMetricStore(1000, DefaultThresholds())

	for i := 0; i < 3; i++ {
		store.TrackButtonClick("settings")
	}
	for i := 0; i < 5; i++ {
		store.TrackButtonClick("scan_flights")
	}
	store.TrackButtonClick("share")
	store.TrackButtonClick("help")
	// Impressions so CTR is defined.
	for i := 0; i < 10; i++ {
		store.TrackButtonImpression("scan_flights")
	}

	report := store.GenerateReport(24 * time.Hour)

	top := report.Buttons.Top
	if len(top) != 4 {
		t.Fatalf("top buttons = %d, want 4", len(top))
	}
	if top[0].Button != "scan_flights" || top[0].Clicks != 5 {
		t.Errorf("top[0] = %+v", top[0])
	}
	if top[1].Button != "settings" || top[1].Clicks != 3 {
		t.Errorf("top[1] = %+v", top[1])
	}
	// share and help tie at 1 click; first occurrence wins.
	if top[2].Button != "share" || top[3].Button != "help" {
		t.Errorf("tie order = %s, %s; want share, help", top[2].Button, top[3].Button)
	}
}

func TestGenerateReport_TopButtonsCapped(t *testing.T) {
	store := NewMetricStore(1000, DefaultThresholds())

	for i := 0; i < 8; i++ {
		store.TrackButtonClick(fmt.Sprintf("button-%d", i))
		store.TrackButtonImpression(fmt.Sprintf("button-%d", i))
	}

	report := store.GenerateReport(24 * time.Hour)
	if len(report.Buttons.Top) != TopButtonLimit {
		t.Errorf("top buttons = %d, want %d", len(report.Buttons.Top), TopButtonLimit)
	}
}

func TestGenerateReport_RaisesAlertsAsSideEffect(t *testing.T) {
	store := NewMetricStore(1000, DefaultThresholds())

	store.TrackOnboardingStarted("u1")
	store.TrackOnboardingStarted("u2")
	// 0% completion breaches the threshold during report generation.

	if got := store.Alerts(true); len(got) != 0 {
		t.Fatalf("expected no alerts before report, got %d", len(got))
	}
	store.GenerateReport(24 * time.Hour)
	if got := store.Alerts(true); len(got) != 1 {
		t.Errorf("expected 1 alert after report, got %d", len(got))
	}
}

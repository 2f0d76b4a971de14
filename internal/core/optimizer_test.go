package core

import (
	"errors"
	"testing"
	"time"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

type staticFeedback struct {
	summary models.FeedbackSummary
	err     error
}

func (f *staticFeedback) Summary() (*models.FeedbackSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.summary
	return &s, nil
}

// blockingFeedback parks Summary until released, so a cycle can be held open.
type blockingFeedback struct {
	entered  chan struct{}
	release  chan struct{}
	blockOne bool
}

func (f *blockingFeedback) Summary() (*models.FeedbackSummary, error) {
	if f.blockOne {
		f.blockOne = false
		close(f.entered)
		<-f.release
	}
	return &models.FeedbackSummary{}, nil
}

type capturingLogger struct {
	events []string
}

func (l *capturingLogger) LogEvent(eventType string, _ map[string]any) error {
	l.events = append(l.events, eventType)
	return nil
}

func quietController(metrics *MetricStore, experiments *ExperimentEngine) *OptimizationController {
	return NewOptimizationController(metrics, experiments, &staticFeedback{}, nil, models.OptimizationParams{}, 0, 0)
}

func TestAnalyzeAndOptimize_IdentifiesLowCompletionRate(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := quietController(metrics, engine)

	// 50% completion is under the 70% signal threshold.
	metrics.TrackOnboardingStarted("u1")
	metrics.TrackOnboardingStarted("u2")
	metrics.TrackOnboardingCompleted("u1", time.Minute)

	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("running pass: %v", err)
	}
	if report.Identified != 1 {
		t.Fatalf("identified = %d, want 1", report.Identified)
	}

	backlog := controller.Backlog()
	if len(backlog) != 1 {
		t.Fatalf("backlog = %d, want 1", len(backlog))
	}
	a := backlog[0]
	if a.ID != "improve-onboarding-completion" {
		t.Errorf("action id = %q", a.ID)
	}
	if a.Priority != models.PriorityHigh || a.Impact != 25 || a.Effort != 3 {
		t.Errorf("action = %+v", a)
	}
	if a.Status != models.ActionPending {
		t.Errorf("status = %q, want pending (effort 3 is above the auto-exec cap)", a.Status)
	}
	if report.PendingImpact != 25 {
		t.Errorf("pending impact = %d, want 25", report.PendingImpact)
	}
}

func TestAnalyzeAndOptimize_NoSignalsNoActions(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := quietController(metrics, engine)

	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("running pass: %v", err)
	}
	if report.Identified != 0 || report.Completed != 0 {
		t.Errorf("report = %+v, want empty pass", report)
	}
	if len(controller.Backlog()) != 0 {
		t.Errorf("backlog not empty on healthy metrics")
	}
}

func TestAnalyzeAndOptimize_DeduplicatesAcrossPasses(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := quietController(metrics, engine)

	metrics.TrackOnboardingStarted("u1")
	metrics.TrackOnboardingStarted("u2")
	metrics.TrackOnboardingCompleted("u1", time.Minute)

	if _, err := controller.AnalyzeAndOptimize(); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if report.Identified != 0 {
		t.Errorf("second pass identified = %d, want 0 (deduplicated)", report.Identified)
	}
	if got := len(controller.Backlog()); got != 1 {
		t.Errorf("backlog = %d, want 1", got)
	}
}

func TestAnalyzeAndOptimize_AutoExecutesCacheTuning(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	logger := &capturingLogger{}
	controller := NewOptimizationController(metrics, engine, &staticFeedback{}, logger,
		models.OptimizationParams{CacheTTLSeconds: 300}, 0, 0)

	// 25% hit rate triggers the effort-1 cache tuning action.
	metrics.TrackCacheHit(true)
	metrics.TrackCacheHit(false)
	metrics.TrackCacheHit(false)
	metrics.TrackCacheHit(false)

	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("running pass: %v", err)
	}

	if report.Completed != 1 {
		t.Fatalf("completed = %d, want 1", report.Completed)
	}
	if len(controller.Backlog()) != 0 {
		t.Errorf("backlog should be empty after auto-execution")
	}
	if got := controller.Params().CacheTTLSeconds; got != 360 {
		t.Errorf("cache TTL = %d, want 360 after one step", got)
	}

	history := controller.History()
	if len(history) != 1 {
		t.Fatalf("history = %d, want 1", len(history))
	}
	done := history[0]
	if done.ID != "increase-cache-ttl" || done.Status != models.ActionCompleted {
		t.Errorf("history entry = %+v", done)
	}
	if done.Completed == nil {
		t.Error("expected completion timestamp")
	}
	if done.Result["param"] != "cache_ttl_seconds" || done.Result["to"] != "360" {
		t.Errorf("result = %v", done.Result)
	}

	wantEvents := map[string]bool{"action.completed": false, "optimize.cycle": false}
	for _, e := range logger.events {
		if _, ok := wantEvents[e]; ok {
			wantEvents[e] = true
		}
	}
	for e, seen := range wantEvents {
		if !seen {
			t.Errorf("event %q not logged", e)
		}
	}
}

func TestAnalyzeAndOptimize_RollsOutDetectedWinner(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := quietController(metrics, engine)

	if _, err := engine.Create("exp", "Exp", twoArmSpecs(), "m", models.KindCounter, ExperimentConfig{MinSampleSize: 2}); err != nil {
		t.Fatalf("creating experiment: %v", err)
	}
	if err := engine.Start("exp"); err != nil {
		t.Fatalf("starting: %v", err)
	}
	fillSamples(t, engine, "control", []float64{1, 0, 1, 0, 1, 0, 1, 0, 1, 0})
	fillSamples(t, engine, "variant_a", []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 0})

	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("running pass: %v", err)
	}
	if report.Completed != 1 {
		t.Fatalf("completed = %d, want 1 (rollout is effort 1)", report.Completed)
	}

	exp, _ := engine.Get("exp")
	if exp.Status != models.ExperimentRolledOut || exp.Winner != "variant_a" {
		t.Errorf("experiment = status %q winner %q", exp.Status, exp.Winner)
	}

	history := controller.History()
	if len(history) != 1 || history[0].ID != "rollout-winner-exp" {
		t.Fatalf("history = %+v", history)
	}
	if history[0].Result["winner"] != "variant_a" {
		t.Errorf("result = %v", history[0].Result)
	}
}

func TestAnalyzeAndOptimize_FailedActionStaysThenExpires(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := NewOptimizationController(metrics, engine, &staticFeedback{}, nil,
		models.OptimizationParams{}, 0, 24*time.Hour)

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	controller.SetClock(fixedClock(base))

	failed := &models.OptimizationAction{
		ID:       "rollout-winner-gone",
		Area:     "experiments",
		Priority: models.PriorityMedium,
		Title:    "Roll out experiment winner for gone",
		Impact:   25,
		Effort:   1,
		Status:   models.ActionFailed,
		Created:  base.Add(-2 * time.Hour),
		Result:   map[string]string{"error": "experiment \"gone\" not found"},
	}
	controller.Restore([]*models.OptimizationAction{failed}, nil, models.OptimizationParams{})

	// Within the TTL the failed action stays in the backlog.
	if _, err := controller.AnalyzeAndOptimize(); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	found := false
	for _, a := range controller.Backlog() {
		if a.ID == "rollout-winner-gone" && a.Status == models.ActionFailed {
			found = true
		}
	}
	if !found {
		t.Fatal("failed action dropped before its TTL")
	}

	// Past the TTL the next pass expires it.
	controller.SetClock(fixedClock(base.Add(25 * time.Hour)))
	if _, err := controller.AnalyzeAndOptimize(); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	for _, a := range controller.Backlog() {
		if a.ID == "rollout-winner-gone" {
			t.Error("failed action survived past its TTL")
		}
	}
}

func TestAnalyzeAndOptimize_FailedExecutionKeepsAction(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := quietController(metrics, engine)

	// An effort-1 action with no auto-executor fails and stays in the backlog.
	stray := &models.OptimizationAction{
		ID:       "mystery-action",
		Area:     "misc",
		Priority: models.PriorityLow,
		Title:    "Unknown tuning knob",
		Impact:   5,
		Effort:   1,
		Status:   models.ActionPending,
		Created:  time.Now(),
	}
	controller.Restore([]*models.OptimizationAction{stray}, nil, models.OptimizationParams{})

	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("running pass: %v", err)
	}
	if report.Completed != 0 {
		t.Errorf("completed = %d, want 0", report.Completed)
	}

	backlog := controller.Backlog()
	if len(backlog) != 1 {
		t.Fatalf("backlog = %d, want 1", len(backlog))
	}
	if backlog[0].Status != models.ActionFailed {
		t.Errorf("status = %q, want failed", backlog[0].Status)
	}
	if backlog[0].Result["error"] == "" {
		t.Error("expected error recorded in the action result")
	}
}

func TestAnalyzeAndOptimize_HistoryCapped(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := NewOptimizationController(metrics, engine, &staticFeedback{}, nil,
		models.OptimizationParams{CacheTTLSeconds: 300}, 2, 0)

	// A persistently low hit rate re-admits and re-executes the cache action
	// on every pass once it leaves the live backlog.
	metrics.TrackCacheHit(false)
	metrics.TrackCacheHit(false)

	for i := 0; i < 5; i++ {
		if _, err := controller.AnalyzeAndOptimize(); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	if got := len(controller.History()); got != 2 {
		t.Errorf("history = %d, want capped at 2", got)
	}
	if got := controller.Params().CacheTTLSeconds; got != 300+5*60 {
		t.Errorf("cache TTL = %d, want 600 after five steps", got)
	}
}

func TestAnalyzeAndOptimize_FeedbackSignals(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	feedback := &staticFeedback{summary: models.FeedbackSummary{
		NPS:           20,
		NegativeRatio: 0.5,
		Responses:     40,
	}}
	controller := NewOptimizationController(metrics, engine, feedback, nil, models.OptimizationParams{}, 0, 0)

	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("running pass: %v", err)
	}
	if report.Identified != 2 {
		t.Fatalf("identified = %d, want 2 feedback actions", report.Identified)
	}

	ids := map[string]bool{}
	for _, a := range controller.Backlog() {
		ids[a.ID] = true
	}
	if !ids["address-low-nps"] || !ids["triage-negative-feedback"] {
		t.Errorf("backlog ids = %v", ids)
	}
}

func TestAnalyzeAndOptimize_FeedbackErrorTreatedAsNoSignal(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	feedback := &staticFeedback{err: errors.New("corrupt feedback file")}
	controller := NewOptimizationController(metrics, engine, feedback, nil, models.OptimizationParams{}, 0, 0)

	report, err := controller.AnalyzeAndOptimize()
	if err != nil {
		t.Fatalf("running pass: %v", err)
	}
	if report.Identified != 0 {
		t.Errorf("identified = %d, want 0 when feedback is unreadable", report.Identified)
	}
}

func TestAnalyzeAndOptimize_SingleFlight(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	feedback := &blockingFeedback{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		blockOne: true,
	}
	controller := NewOptimizationController(metrics, engine, feedback, nil, models.OptimizationParams{}, 0, 0)

	done := make(chan error, 1)
	go func() {
		_, err := controller.AnalyzeAndOptimize()
		done <- err
	}()

	<-feedback.entered
	if _, err := controller.AnalyzeAndOptimize(); !errors.Is(err, ErrCycleInProgress) {
		t.Errorf("concurrent pass error = %v, want ErrCycleInProgress", err)
	}
	close(feedback.release)

	if err := <-done; err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	// The flag is cleared: a fresh pass succeeds.
	if _, err := controller.AnalyzeAndOptimize(); err != nil {
		t.Errorf("follow-up pass failed: %v", err)
	}
}

func TestBacklog_RankedByPriorityThenImpact(t *testing.T) {
	metrics := NewMetricStore(1000, DefaultThresholds())
	engine := NewExperimentEngine(100, 0.95)
	controller := quietController(metrics, engine)

	actions := []*models.OptimizationAction{
		{ID: "low", Priority: models.PriorityLow, Impact: 90, Status: models.ActionPending},
		{ID: "critical-small", Priority: models.PriorityCritical, Impact: 10, Status: models.ActionPending},
		{ID: "critical-big", Priority: models.PriorityCritical, Impact: 40, Status: models.ActionPending},
		{ID: "medium", Priority: models.PriorityMedium, Impact: 50, Status: models.ActionPending},
	}
	controller.Restore(actions, nil, models.OptimizationParams{})

	got := controller.Backlog()
	wantOrder := []string{"critical-big", "critical-small", "medium", "low"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("backlog[%d] = %q, want %q", i, got[i].ID, want)
		}
	}
}

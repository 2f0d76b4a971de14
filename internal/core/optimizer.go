package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// ErrCycleInProgress is returned when AnalyzeAndOptimize is called while a
// previous cycle is still running. Cycles are single-flight.
var ErrCycleInProgress = errors.New("optimization cycle already in progress")

// Controller limits and tuning steps.
const (
	// maxNewActionsPerCycle caps how many new candidates a cycle admits.
	maxNewActionsPerCycle = 10
	// autoExecuteMaxEffort is the highest effort auto-executed without a human.
	autoExecuteMaxEffort = 2
	// DefaultHistorySize caps the completed-action history.
	DefaultHistorySize = 100
	// DefaultFailedActionTTL is how long a failed action stays in the backlog.
	DefaultFailedActionTTL = 24 * time.Hour
	// cacheTTLStepSeconds is the increment applied by the cache tuning action.
	cacheTTLStepSeconds = 60
	// signalWindow is the metrics window every analysis pass evaluates.
	signalWindow = 24 * time.Hour

	rolloutActionPrefix = "rollout-winner-"
)

// OptimizationReport summarises one analysis pass for operators.
type OptimizationReport struct {
	Generated time.Time `json:"generated"`
	// Identified is the number of new actions admitted this pass.
	Identified int `json:"identified"`
	// Completed is the number of actions auto-executed this pass.
	Completed int `json:"completed"`
	// PendingImpact is the cumulative impact estimate of the remaining backlog.
	PendingImpact int `json:"pending_impact"`
	// RecentCompleted holds the titles of the last 10 completed actions.
	RecentCompleted []string `json:"recent_completed"`
	// NextActions is the top of the backlog, ranked for display.
	NextActions []*models.OptimizationAction `json:"next_actions"`
}

// OptimizationController converts metric, experiment, and feedback signals
// into a prioritized action backlog and auto-executes the low-effort entries.
// Collaborators are injected; the controller owns no global state.
type OptimizationController struct {
	mu      sync.Mutex
	running bool

	metrics     *MetricStore
	experiments *ExperimentEngine
	feedback    FeedbackSource
	events      EventLogger

	params     models.OptimizationParams
	backlog    []*models.OptimizationAction
	history    []*models.OptimizationAction
	historyCap int
	failedTTL  time.Duration
	now        func() time.Time
}

// NewOptimizationController creates a controller over the given collaborators.
// events may be nil. Zero historyCap and failedTTL fall back to the defaults.
func NewOptimizationController(metrics *MetricStore, experiments *ExperimentEngine, feedback FeedbackSource, events EventLogger, params models.OptimizationParams, historyCap int, failedTTL time.Duration) *OptimizationController {
	if historyCap <= 0 {
		historyCap = DefaultHistorySize
	}
	if failedTTL <= 0 {
		failedTTL = DefaultFailedActionTTL
	}
	return &OptimizationController{
		metrics:     metrics,
		experiments: experiments,
		feedback:    feedback,
		events:      events,
		params:      params,
		historyCap:  historyCap,
		failedTTL:   failedTTL,
		now:         time.Now,
	}
}

// SetClock overrides the controller's time source. Intended for tests.
func (c *OptimizationController) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Params returns the current tuning parameters.
func (c *OptimizationController) Params() models.OptimizationParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Backlog returns the live backlog ranked by (priority, impact).
func (c *OptimizationController) Backlog() []*models.OptimizationAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]*models.OptimizationAction(nil), c.backlog...)
	rankActions(out)
	return out
}

// History returns the completed-action history, oldest first.
func (c *OptimizationController) History() []*models.OptimizationAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.OptimizationAction(nil), c.history...)
}

// AnalyzeAndOptimize runs one full analysis pass: expire stale failures,
// gather signals, admit new actions, auto-execute the low-effort backlog, and
// report. Passes are single-flight; a concurrent call fails with
// ErrCycleInProgress.
func (c *OptimizationController) AnalyzeAndOptimize() (*OptimizationReport, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrCycleInProgress
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	// Feedback is read before taking the lock: the source may do file I/O.
	summary, err := c.feedback.Summary()
	if err != nil {
		summary = &models.FeedbackSummary{}
	}

	candidates := c.gatherSignals(summary)

	c.mu.Lock()
	c.expireFailed()
	identified := c.admit(candidates)
	completed, logs := c.autoExecute()
	report := c.buildReport(identified, completed)
	c.mu.Unlock()

	logs = append(logs, eventRecord{
		eventType: "optimize.cycle",
		data: map[string]any{
			"identified":     identified,
			"completed":      completed,
			"pending_impact": report.PendingImpact,
		},
	})
	c.writeEvents(logs)
	return report, nil
}

// gatherSignals maps fresh metric, experiment, and feedback readings through
// the fixed rule table to candidate actions.
func (c *OptimizationController) gatherSignals(feedback *models.FeedbackSummary) []*models.OptimizationAction {
	var candidates []*models.OptimizationAction
	created := c.now()

	add := func(id, area string, priority models.ActionPriority, title, description string, impact, effort int) {
		candidates = append(candidates, &models.OptimizationAction{
			ID:          id,
			Area:        area,
			Priority:    priority,
			Title:       title,
			Description: description,
			Impact:      impact,
			Effort:      effort,
			Status:      models.ActionPending,
			Created:     created,
		})
	}

	if c.metrics.Count(MetricOnboardingStarted, signalWindow) > 0 {
		if rate := c.metrics.OnboardingCompletionRate(signalWindow); rate < 0.70 {
			add("improve-onboarding-completion", "onboarding", models.PriorityHigh,
				"Improve onboarding completion",
				fmt.Sprintf("Completion rate at %.1f%%, target 70%%", rate*100), 25, 3)
		}
		if dur := c.metrics.Avg(MetricOnboardingDuration, signalWindow); dur > 120 {
			add("shorten-onboarding", "onboarding", models.PriorityMedium,
				"Shorten the onboarding flow",
				fmt.Sprintf("Average duration %.0fs, target under 120s", dur), 20, 3)
		}
	}

	if c.metrics.Count(MetricResponseTime, signalWindow) > 0 {
		if rate := c.metrics.ErrorRate(signalWindow); rate > 0.02 {
			add("reduce-error-rate", "reliability", models.PriorityCritical,
				"Reduce the error rate",
				fmt.Sprintf("Error rate at %.2f%%, target under 2%%", rate*100), 40, 3)
		}
		if avgMS := c.metrics.AvgResponseTime(signalWindow); avgMS > 1500 {
			add("optimize-slow-handlers", "performance", models.PriorityHigh,
				"Profile and optimize slow handlers",
				fmt.Sprintf("Average response time %.0fms", avgMS), 30, 4)
			if avgMS > 2000 {
				add("relax-scan-interval", "performance", models.PriorityMedium,
					"Relax the background scan interval",
					"Shed scan load while handlers are slow", 15, 2)
			}
		}
	}

	if c.metrics.Count(MetricButtonImpression, signalWindow) > 0 {
		if ctr := c.metrics.ButtonCTR(signalWindow); ctr < 0.40 {
			add("improve-button-layout", "engagement", models.PriorityMedium,
				"Rework button labels and layout",
				fmt.Sprintf("CTR at %.1f%%, target 40%%", ctr*100), 20, 3)
		}
	}

	if c.metrics.Count(MetricCacheHit, signalWindow)+c.metrics.Count(MetricCacheMiss, signalWindow) > 0 {
		if rate := c.metrics.CacheHitRate(signalWindow); rate < 0.60 {
			add("increase-cache-ttl", "performance", models.PriorityMedium,
				"Increase the cache TTL",
				fmt.Sprintf("Cache hit rate at %.1f%%, target 60%%", rate*100), 15, 1)
		}
	}

	for _, expID := range c.experiments.Running() {
		winner, err := c.experiments.DetectWinner(expID)
		if err != nil || winner == "" {
			continue
		}
		add(rolloutActionPrefix+expID, "experiments", models.PriorityMedium,
			fmt.Sprintf("Roll out experiment winner for %s", expID),
			fmt.Sprintf("Variant %q is significant with >5%% lift", winner), 25, 1)
	}

	if feedback.Responses > 0 {
		if feedback.NPS < 40 {
			add("address-low-nps", "feedback", models.PriorityHigh,
				"Address low NPS",
				fmt.Sprintf("NPS at %.0f, target 40", feedback.NPS), 35, 4)
		}
		if feedback.NegativeRatio > 0.30 {
			add("triage-negative-feedback", "feedback", models.PriorityHigh,
				"Triage negative feedback themes",
				fmt.Sprintf("Negative sentiment at %.0f%%", feedback.NegativeRatio*100), 30, 4)
		}
	}

	return candidates
}

// expireFailed drops failed actions that exceeded their TTL. Callers must
// hold the mutex.
func (c *OptimizationController) expireFailed() {
	cutoff := c.now().Add(-c.failedTTL)
	kept := c.backlog[:0]
	for _, a := range c.backlog {
		if a.Status == models.ActionFailed && a.Created.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	c.backlog = kept
}

// admit deduplicates candidates by id against the live backlog and appends up
// to the per-cycle cap, best-ranked first. Callers must hold the mutex.
func (c *OptimizationController) admit(candidates []*models.OptimizationAction) int {
	live := make(map[string]bool, len(c.backlog))
	for _, a := range c.backlog {
		live[a.ID] = true
	}

	fresh := make([]*models.OptimizationAction, 0, len(candidates))
	for _, cand := range candidates {
		if !live[cand.ID] {
			fresh = append(fresh, cand)
			live[cand.ID] = true
		}
	}
	rankActions(fresh)
	if len(fresh) > maxNewActionsPerCycle {
		fresh = fresh[:maxNewActionsPerCycle]
	}
	c.backlog = append(c.backlog, fresh...)
	return len(fresh)
}

// eventRecord defers event-log writes until the controller lock is released.
type eventRecord struct {
	eventType string
	data      map[string]any
}

// autoExecute attempts every pending backlog action with effort at or below
// the auto-execution cap. Callers must hold the mutex.
func (c *OptimizationController) autoExecute() (int, []eventRecord) {
	completed := 0
	var logs []eventRecord

	ranked := append([]*models.OptimizationAction(nil), c.backlog...)
	rankActions(ranked)

	for _, action := range ranked {
		if action.Status != models.ActionPending || action.Effort > autoExecuteMaxEffort {
			continue
		}

		action.Status = models.ActionInProgress
		result, err := c.execute(action)
		if err != nil {
			action.Status = models.ActionFailed
			action.Result = map[string]string{"error": err.Error()}
			logs = append(logs, eventRecord{
				eventType: "action.failed",
				data:      map[string]any{"action": action.ID, "error": err.Error()},
			})
			continue
		}

		now := c.now()
		action.Status = models.ActionCompleted
		action.Completed = &now
		action.Result = result
		completed++
		c.moveToHistory(action)
		logs = append(logs, eventRecord{
			eventType: "action.completed",
			data:      map[string]any{"action": action.ID, "title": action.Title},
		})
	}
	return completed, logs
}

// execute runs the auto-executor matching the action id. Rollout actions
// re-check the winner at execution time; tuning actions mutate the numeric
// params and always succeed. Callers must hold the mutex.
func (c *OptimizationController) execute(action *models.OptimizationAction) (map[string]string, error) {
	if strings.HasPrefix(action.ID, rolloutActionPrefix) {
		expID := strings.TrimPrefix(action.ID, rolloutActionPrefix)
		// The winner may have changed since the action was identified.
		winner, err := c.experiments.DetectWinner(expID)
		if err != nil {
			return nil, err
		}
		if winner == "" {
			return nil, fmt.Errorf("experiment %q: winner no longer detectable", expID)
		}
		if err := c.experiments.RolloutWinner(expID, winner); err != nil {
			return nil, err
		}
		return map[string]string{"experiment": expID, "winner": winner}, nil
	}

	switch action.ID {
	case "increase-cache-ttl":
		from := c.params.CacheTTLSeconds
		c.params.CacheTTLSeconds += cacheTTLStepSeconds
		return map[string]string{
			"param": "cache_ttl_seconds",
			"from":  strconv.Itoa(from),
			"to":    strconv.Itoa(c.params.CacheTTLSeconds),
		}, nil
	case "relax-scan-interval":
		from := c.params.ScanIntervalHours
		c.params.ScanIntervalHours++
		return map[string]string{
			"param": "scan_interval_hours",
			"from":  strconv.Itoa(from),
			"to":    strconv.Itoa(c.params.ScanIntervalHours),
		}, nil
	}
	return nil, fmt.Errorf("action %q has no auto-executor", action.ID)
}

// moveToHistory removes the action from the backlog and appends it to the
// bounded history. Callers must hold the mutex.
func (c *OptimizationController) moveToHistory(action *models.OptimizationAction) {
	kept := c.backlog[:0]
	for _, a := range c.backlog {
		if a.ID != action.ID {
			kept = append(kept, a)
		}
	}
	c.backlog = kept

	c.history = append(c.history, action)
	if len(c.history) > c.historyCap {
		c.history = c.history[len(c.history)-c.historyCap:]
	}
}

// buildReport assembles the pass summary. Callers must hold the mutex.
func (c *OptimizationController) buildReport(identified, completed int) *OptimizationReport {
	report := &OptimizationReport{
		Generated:  c.now(),
		Identified: identified,
		Completed:  completed,
	}

	for _, a := range c.backlog {
		report.PendingImpact += a.Impact
	}

	start := len(c.history) - 10
	if start < 0 {
		start = 0
	}
	for _, a := range c.history[start:] {
		report.RecentCompleted = append(report.RecentCompleted, a.Title)
	}

	next := append([]*models.OptimizationAction(nil), c.backlog...)
	rankActions(next)
	if len(next) > 5 {
		next = next[:5]
	}
	report.NextActions = next
	return report
}

// writeEvents flushes deferred event records; a nil logger drops them.
func (c *OptimizationController) writeEvents(logs []eventRecord) {
	if c.events == nil {
		return
	}
	for _, rec := range logs {
		// Event log failures never fail the cycle.
		_ = c.events.LogEvent(rec.eventType, rec.data)
	}
}

// rankActions sorts by priority rank, then impact, both descending. The sort
// is stable so equal actions keep their insertion order.
func rankActions(actions []*models.OptimizationAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Priority.Rank() != actions[j].Priority.Rank() {
			return actions[i].Priority.Rank() > actions[j].Priority.Rank()
		}
		return actions[i].Impact > actions[j].Impact
	})
}

// --- Persistence ---

// Snapshot returns deep copies of the backlog, history, and params.
func (c *OptimizationController) Snapshot() ([]*models.OptimizationAction, []*models.OptimizationAction, models.OptimizationParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.OptimizationAction(nil), c.backlog...),
		append([]*models.OptimizationAction(nil), c.history...),
		c.params
}

// Restore replaces the controller state from a snapshot, re-truncating the
// history to its cap.
func (c *OptimizationController) Restore(backlog, history []*models.OptimizationAction, params models.OptimizationParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backlog = append([]*models.OptimizationAction(nil), backlog...)
	if len(history) > c.historyCap {
		history = history[len(history)-c.historyCap:]
	}
	c.history = append([]*models.OptimizationAction(nil), history...)
	c.params = params
}

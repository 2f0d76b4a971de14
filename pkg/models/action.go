package models

import (
	"fmt"
	"time"
)

// ActionPriority represents the urgency of an optimization action.
type ActionPriority string

const (
	PriorityCritical ActionPriority = "critical"
	PriorityHigh     ActionPriority = "high"
	PriorityMedium   ActionPriority = "medium"
	PriorityLow      ActionPriority = "low"
)

// ParseActionPriority validates a string tag and returns the corresponding
// ActionPriority.
func ParseActionPriority(s string) (ActionPriority, error) {
	switch ActionPriority(s) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return ActionPriority(s), nil
	}
	return "", fmt.Errorf("%w: unknown action priority %q", ErrValidation, s)
}

// Rank returns a sortable weight where critical ranks highest.
func (p ActionPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ActionStatus represents the lifecycle state of an optimization action.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// ParseActionStatus validates a string tag and returns the corresponding
// ActionStatus.
func ParseActionStatus(s string) (ActionStatus, error) {
	switch ActionStatus(s) {
	case ActionPending, ActionInProgress, ActionCompleted, ActionFailed:
		return ActionStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown action status %q", ErrValidation, s)
}

// OptimizationAction is one rule-derived improvement item in the backlog.
// The ID doubles as the dedup key: no two live backlog actions share one.
type OptimizationAction struct {
	ID          string         `yaml:"id" json:"id"`
	Area        string         `yaml:"area" json:"area"`
	Priority    ActionPriority `yaml:"priority" json:"priority"`
	Title       string         `yaml:"title" json:"title"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	// Impact is a 0-100 heuristic estimate; Effort is 1 (trivial) to 5 (major).
	Impact    int               `yaml:"impact" json:"impact"`
	Effort    int               `yaml:"effort" json:"effort"`
	Status    ActionStatus      `yaml:"status" json:"status"`
	Created   time.Time         `yaml:"created" json:"created"`
	Completed *time.Time        `yaml:"completed,omitempty" json:"completed,omitempty"`
	Result    map[string]string `yaml:"result,omitempty" json:"result,omitempty"`
}

// OptimizationParams is the numeric tuning state mutated by auto-executed
// tuning actions.
type OptimizationParams struct {
	CacheTTLSeconds    int     `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	ScanIntervalHours  int     `yaml:"scan_interval_hours" json:"scan_interval_hours"`
	MaxAlertsPerDigest int     `yaml:"max_alerts_per_digest" json:"max_alerts_per_digest"`
	NotifyQuietRatio   float64 `yaml:"notify_quiet_ratio" json:"notify_quiet_ratio"`
}

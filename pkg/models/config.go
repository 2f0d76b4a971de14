package models

// AlertThresholds holds the static threshold table for watched metrics.
// Rates are fractions in [0,1]; response time is in milliseconds.
type AlertThresholds struct {
	MinCompletionRate float64 `yaml:"min_completion_rate" json:"min_completion_rate"`
	MinButtonCTR      float64 `yaml:"min_button_ctr" json:"min_button_ctr"`
	MaxErrorRate      float64 `yaml:"max_error_rate" json:"max_error_rate"`
	MaxResponseTimeMS float64 `yaml:"max_response_time_ms" json:"max_response_time_ms"`
	MinCacheHitRate   float64 `yaml:"min_cache_hit_rate" json:"min_cache_hit_rate"`
}

// GlobalConfig is the merged engine configuration read from .gbrconfig.
type GlobalConfig struct {
	// MetricBufferSize caps each per-name metric ring buffer.
	MetricBufferSize int `yaml:"metric_buffer_size"`
	// ActionHistorySize caps the completed-action history.
	ActionHistorySize int `yaml:"action_history_size"`
	// FailedActionTTLHours is how long a failed action stays in the backlog
	// before a later optimization pass expires it.
	FailedActionTTLHours int `yaml:"failed_action_ttl_hours"`
	// DefaultMinSampleSize applies to experiments created without one.
	DefaultMinSampleSize int `yaml:"default_min_sample_size"`
	// DefaultConfidence applies to experiments created without one.
	DefaultConfidence float64 `yaml:"default_confidence"`
	// FlushIntervalSeconds drives the optimize --watch persistence cadence.
	FlushIntervalSeconds int `yaml:"flush_interval_seconds"`
	// SlackWebhookURL enables alert notifications when non-empty.
	SlackWebhookURL string `yaml:"slack_webhook_url"`

	Thresholds AlertThresholds    `yaml:"thresholds"`
	Params     OptimizationParams `yaml:"params"`
}

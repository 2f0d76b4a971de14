package models

import (
	"fmt"
	"time"
)

// MetricKind represents the aggregation semantics of a recorded metric.
type MetricKind string

const (
	KindCounter   MetricKind = "counter"
	KindGauge     MetricKind = "gauge"
	KindHistogram MetricKind = "histogram"
)

// ParseMetricKind validates a string tag and returns the corresponding MetricKind.
func ParseMetricKind(s string) (MetricKind, error) {
	switch MetricKind(s) {
	case KindCounter, KindGauge, KindHistogram:
		return MetricKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown metric kind %q", ErrValidation, s)
}

// MetricEvent is a single recorded observation for a named metric.
type MetricEvent struct {
	Name  string            `yaml:"name" json:"name"`
	Kind  MetricKind        `yaml:"kind" json:"kind"`
	Value float64           `yaml:"value" json:"value"`
	Time  time.Time         `yaml:"time" json:"time"`
	Tags  map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// AlertSeverity represents the urgency of a threshold alert.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

// ParseAlertSeverity validates a string tag and returns the corresponding AlertSeverity.
func ParseAlertSeverity(s string) (AlertSeverity, error) {
	switch AlertSeverity(s) {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return AlertSeverity(s), nil
	}
	return "", fmt.Errorf("%w: unknown alert severity %q", ErrValidation, s)
}

// Alert records a watched metric crossing its static threshold. Alerts are
// appended on every breaching read and are not deduplicated; Resolved is
// mutated only through an explicit resolve call.
type Alert struct {
	ID        string        `yaml:"id" json:"id"`
	Severity  AlertSeverity `yaml:"severity" json:"severity"`
	Metric    string        `yaml:"metric" json:"metric"`
	Message   string        `yaml:"message" json:"message"`
	Value     float64       `yaml:"value" json:"value"`
	Threshold float64       `yaml:"threshold" json:"threshold"`
	Time      time.Time     `yaml:"time" json:"time"`
	Resolved  bool          `yaml:"resolved" json:"resolved"`
}

package models

import (
	"fmt"
	"time"
)

// ExperimentStatus represents the lifecycle state of an A/B experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentRolledOut ExperimentStatus = "rolled_out"
)

// ParseExperimentStatus validates a string tag and returns the corresponding
// ExperimentStatus.
func ParseExperimentStatus(s string) (ExperimentStatus, error) {
	switch ExperimentStatus(s) {
	case ExperimentDraft, ExperimentRunning, ExperimentPaused,
		ExperimentCompleted, ExperimentRolledOut:
		return ExperimentStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown experiment status %q", ErrValidation, s)
}

// ControlVariant is the reserved variant id winners are compared against.
// The control arm itself is never declared a winner.
const ControlVariant = "control"

// Variant is one treatment arm of an experiment.
type Variant struct {
	ID          string            `yaml:"id" json:"id"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Config      map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
	// Users holds the ids assigned to this arm, in assignment order.
	Users []string `yaml:"users,omitempty" json:"users,omitempty"`
}

// Experiment is an A/B test: a set of variants, a primary metric, traffic
// weights, and the thresholds used for winner detection.
//
// VariantOrder preserves the insertion order of the variant set; weighted
// bucketing and winner tie-breaks walk variants in that order so results are
// deterministic and reproducible. Weights are used as supplied and are not
// renormalized.
type Experiment struct {
	ID            string              `yaml:"id" json:"id"`
	Name          string              `yaml:"name" json:"name"`
	Status        ExperimentStatus    `yaml:"status" json:"status"`
	Variants      map[string]*Variant `yaml:"variants" json:"variants"`
	VariantOrder  []string            `yaml:"variant_order" json:"variant_order"`
	PrimaryMetric string              `yaml:"primary_metric" json:"primary_metric"`
	MetricKind    MetricKind          `yaml:"metric_kind" json:"metric_kind"`
	Traffic       map[string]float64  `yaml:"traffic" json:"traffic"`
	MinSampleSize int                 `yaml:"min_sample_size" json:"min_sample_size"`
	// ConfidenceLevel is recorded for reporting; the significance test itself
	// uses a fixed z of 1.96 regardless of this value.
	ConfidenceLevel float64    `yaml:"confidence_level" json:"confidence_level"`
	Winner          string     `yaml:"winner,omitempty" json:"winner,omitempty"`
	Created         time.Time  `yaml:"created" json:"created"`
	Started         *time.Time `yaml:"started,omitempty" json:"started,omitempty"`
	Ended           *time.Time `yaml:"ended,omitempty" json:"ended,omitempty"`
}

// OrderedVariants returns the experiment's variants in insertion order.
func (e *Experiment) OrderedVariants() []*Variant {
	out := make([]*Variant, 0, len(e.VariantOrder))
	for _, id := range e.VariantOrder {
		if v, ok := e.Variants[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// VariantResult summarises the tracked samples for one variant.
type VariantResult struct {
	VariantID  string  `json:"variant_id"`
	Samples    int     `json:"samples"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	CILow      float64 `json:"ci_low"`
	CIHigh     float64 `json:"ci_high"`
	Conversion float64 `json:"conversion"`
}

package models

import "time"

// FeedbackSummary is the read-only rollup the optimization controller consumes
// from the feedback collaborator. Ratios are fractions in [0,1].
type FeedbackSummary struct {
	NPS           float64   `yaml:"nps" json:"nps"`
	PositiveRatio float64   `yaml:"positive_ratio" json:"positive_ratio"`
	NegativeRatio float64   `yaml:"negative_ratio" json:"negative_ratio"`
	NeutralRatio  float64   `yaml:"neutral_ratio" json:"neutral_ratio"`
	Responses     int       `yaml:"responses" json:"responses"`
	Updated       time.Time `yaml:"updated" json:"updated"`
}

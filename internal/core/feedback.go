package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/growth-brain/pkg/models"
	"gopkg.in/yaml.v3"
)

// FeedbackSource provides the read-only feedback rollup the optimization
// controller consumes. The collaborator that gathers survey responses lives
// outside this engine.
type FeedbackSource interface {
	Summary() (*models.FeedbackSummary, error)
}

// fileFeedbackSource reads feedback.yaml from the base path.
type fileFeedbackSource struct {
	basePath string
}

// NewFileFeedbackSource creates a FeedbackSource reading
// <basePath>/feedback.yaml.
func NewFileFeedbackSource(basePath string) FeedbackSource {
	return &fileFeedbackSource{basePath: basePath}
}

// Summary returns the feedback rollup. A missing file yields an empty summary
// with zero responses, which the controller treats as "no feedback signal".
func (f *fileFeedbackSource) Summary() (*models.FeedbackSummary, error) {
	data, err := os.ReadFile(filepath.Join(f.basePath, "feedback.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return &models.FeedbackSummary{}, nil
		}
		return nil, fmt.Errorf("reading feedback summary: %w", err)
	}

	var summary models.FeedbackSummary
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("reading feedback summary: parsing YAML: %w", err)
	}
	return &summary, nil
}

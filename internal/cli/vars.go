package cli

import (
	"github.com/valter-silva-au/growth-brain/internal/core"
	"github.com/valter-silva-au/growth-brain/internal/observability"
	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath    string
	Config      *models.GlobalConfig
	Metrics     *core.MetricStore
	Experiments *core.ExperimentEngine
	Controller  *core.OptimizationController
	Selector    *core.MessageSelector
	EventLog    observability.EventLog
	Notifier    observability.Notifier
	// SaveState flushes the full engine snapshot; mutating commands call it
	// before exiting.
	SaveState func() error
)

// saveState is a nil-safe wrapper around SaveState.
func saveState() error {
	if SaveState == nil {
		return nil
	}
	return SaveState()
}

package cli

import (
	"time"

	"github.com/valter-silva-au/growth-brain/internal/core"
	"github.com/valter-silva-au/growth-brain/internal/observability"
)

// logEvent writes an engine event, silently dropping it when the event log is
// disabled or the write fails.
func logEvent(eventType string, data map[string]any) {
	if EventLog == nil {
		return
	}
	_ = EventLog.Write(observability.Event{
		Time:  time.Now().UTC(),
		Level: "INFO",
		Type:  eventType,
		Data:  data,
	})
}

// coreTemplates returns the built-in experiment templates.
func coreTemplates() []core.ExperimentTemplate {
	return core.Templates()
}

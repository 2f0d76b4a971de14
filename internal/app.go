// Package internal provides the App struct that wires all components of the
// Growth Brain engine together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/growth-brain/internal/cli"
	"github.com/valter-silva-au/growth-brain/internal/core"
	"github.com/valter-silva-au/growth-brain/internal/observability"
	"github.com/valter-silva-au/growth-brain/internal/storage"
	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// App holds all service dependencies for the Growth Brain engine.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer
	KV    storage.KeyValueStore
	State storage.StateManager

	// Core services
	Metrics     *core.MetricStore
	Experiments *core.ExperimentEngine
	Feedback    core.FeedbackSource
	Controller  *core.OptimizationController
	Selector    *core.MessageSelector

	// Observability
	EventLog observability.EventLog
	Notifier observability.Notifier
}

// NewApp creates and wires all components of the Growth Brain engine.
// basePath is the directory holding configuration and state (typically the
// directory containing .gbrconfig).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	app.Config = cfg

	// --- Storage layer ---
	app.KV = storage.NewFileKeyValueStore(basePath, "engine_state")
	app.State = storage.NewStateManager(app.KV)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".gbr_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: run without an event log.
		app.EventLog = nil
	}
	if cfg.SlackWebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.SlackWebhookURL)
	}

	// --- Core services ---
	app.Metrics = core.NewMetricStore(cfg.MetricBufferSize, cfg.Thresholds)
	app.Experiments = core.NewExperimentEngine(cfg.DefaultMinSampleSize, cfg.DefaultConfidence)
	app.Feedback = core.NewFileFeedbackSource(basePath)

	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}
	}
	app.Controller = core.NewOptimizationController(
		app.Metrics,
		app.Experiments,
		app.Feedback,
		events,
		cfg.Params,
		cfg.ActionHistorySize,
		time.Duration(cfg.FailedActionTTLHours)*time.Hour,
	)
	app.Selector = core.NewMessageSelector(app.Experiments)

	// --- Restore persisted state ---
	if err := app.LoadState(); err != nil {
		// Persistence failures never crash the process; in-memory state
		// stays authoritative until the next successful flush.
		fmt.Fprintf(os.Stderr, "Warning: loading engine state: %v\n", err)
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Metrics = app.Metrics
	cli.Experiments = app.Experiments
	cli.Controller = app.Controller
	cli.Selector = app.Selector
	cli.EventLog = app.EventLog
	cli.Notifier = app.Notifier
	cli.SaveState = app.SaveState

	return app, nil
}

// LoadState restores engine state from the key-value store.
func (a *App) LoadState() error {
	snap, err := a.State.Load()
	if err != nil {
		return err
	}
	a.Metrics.Restore(snap.Metrics, snap.Alerts)
	a.Experiments.Restore(snap.Experiments, snap.Assignments, snap.Samples)

	params := snap.Params
	if params == (models.OptimizationParams{}) {
		params = a.Config.Params
	}
	a.Controller.Restore(snap.Backlog, snap.History, params)
	return nil
}

// SaveState flushes a full engine snapshot through the key-value store. The
// flush overwrites previous state and is safe to repeat.
func (a *App) SaveState() error {
	snap := &storage.EngineSnapshot{}
	snap.Metrics, snap.Alerts = a.Metrics.Snapshot()
	snap.Experiments, snap.Assignments, snap.Samples = a.Experiments.Snapshot()
	snap.Backlog, snap.History, snap.Params = a.Controller.Snapshot()
	return a.State.Save(snap)
}

// Close releases resources held by the App, such as the event log file handle.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for the Growth Brain data
// directory. It checks the GBR_HOME env var, then walks up from the working
// directory looking for .gbrconfig, then falls back to the working directory.
func ResolveBasePath() string {
	if home := os.Getenv("GBR_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".gbrconfig")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:  time.Now().UTC(),
		Level: "INFO",
		Type:  eventType,
		Data:  data,
	})
}

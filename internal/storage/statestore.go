package storage

import (
	"fmt"

	"github.com/valter-silva-au/growth-brain/pkg/models"
	"gopkg.in/yaml.v3"
)

// Section keys within the engine key-value store.
const (
	keyExperiments = "experiments"
	keyAssignments = "assignments"
	keySamples     = "samples"
	keyBacklog     = "backlog"
	keyHistory     = "history"
	keyParams      = "params"
	keyMetrics     = "metrics"
	keyAlerts      = "alerts"
)

// EngineSnapshot is the full persistable state of the engine. Metric buffers
// are already ring-truncated by the time they land here, so a reload
// reconstructs identical state modulo that truncation.
type EngineSnapshot struct {
	Experiments []*models.Experiment `yaml:"experiments"`
	// Assignments maps experiment id -> user id -> variant id.
	Assignments map[string]map[string]string `yaml:"assignments"`
	// Samples maps experiment id -> variant id -> tracked outcome values.
	Samples map[string]map[string][]float64 `yaml:"samples"`
	Backlog []*models.OptimizationAction    `yaml:"backlog"`
	History []*models.OptimizationAction    `yaml:"history"`
	Params  models.OptimizationParams       `yaml:"params"`
	// Metrics maps metric name -> recorded events, oldest first.
	Metrics map[string][]models.MetricEvent `yaml:"metrics"`
	Alerts  []models.Alert                  `yaml:"alerts"`
}

// StateManager persists engine snapshots through a KeyValueStore.
type StateManager interface {
	Save(snap *EngineSnapshot) error
	Load() (*EngineSnapshot, error)
	Flush() error
}

type kvStateManager struct {
	kv KeyValueStore
}

// NewStateManager creates a StateManager on top of the given KeyValueStore.
func NewStateManager(kv KeyValueStore) StateManager {
	return &kvStateManager{kv: kv}
}

// Save serializes every snapshot section into the key-value store and flushes.
func (m *kvStateManager) Save(snap *EngineSnapshot) error {
	sections := map[string]any{
		keyExperiments: snap.Experiments,
		keyAssignments: snap.Assignments,
		keySamples:     snap.Samples,
		keyBacklog:     snap.Backlog,
		keyHistory:     snap.History,
		keyParams:      snap.Params,
		keyMetrics:     snap.Metrics,
		keyAlerts:      snap.Alerts,
	}
	for key, section := range sections {
		data, err := yaml.Marshal(section)
		if err != nil {
			return fmt.Errorf("saving engine state: marshaling %s: %w", key, err)
		}
		m.kv.Put(key, string(data))
	}
	return m.kv.Flush()
}

// Load reads and validates a snapshot from the key-value store. Missing
// sections yield empty state. Unknown enum tags fail with a validation error.
func (m *kvStateManager) Load() (*EngineSnapshot, error) {
	if err := m.kv.Load(); err != nil {
		return nil, err
	}

	snap := &EngineSnapshot{
		Assignments: make(map[string]map[string]string),
		Samples:     make(map[string]map[string][]float64),
		Metrics:     make(map[string][]models.MetricEvent),
	}

	if err := m.unmarshalSection(keyExperiments, &snap.Experiments); err != nil {
		return nil, err
	}
	if err := m.unmarshalSection(keyAssignments, &snap.Assignments); err != nil {
		return nil, err
	}
	if err := m.unmarshalSection(keySamples, &snap.Samples); err != nil {
		return nil, err
	}
	if err := m.unmarshalSection(keyBacklog, &snap.Backlog); err != nil {
		return nil, err
	}
	if err := m.unmarshalSection(keyHistory, &snap.History); err != nil {
		return nil, err
	}
	if err := m.unmarshalSection(keyParams, &snap.Params); err != nil {
		return nil, err
	}
	if err := m.unmarshalSection(keyMetrics, &snap.Metrics); err != nil {
		return nil, err
	}
	if err := m.unmarshalSection(keyAlerts, &snap.Alerts); err != nil {
		return nil, err
	}

	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (m *kvStateManager) Flush() error {
	return m.kv.Flush()
}

func (m *kvStateManager) unmarshalSection(key string, out any) error {
	raw, ok := m.kv.Get(key)
	if !ok || raw == "" {
		return nil
	}
	if err := yaml.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("loading engine state: parsing %s: %w", key, err)
	}
	return nil
}

// validateSnapshot checks every persisted enum through its string tag.
func validateSnapshot(snap *EngineSnapshot) error {
	for _, exp := range snap.Experiments {
		if _, err := models.ParseExperimentStatus(string(exp.Status)); err != nil {
			return fmt.Errorf("experiment %s: %w", exp.ID, err)
		}
		if _, err := models.ParseMetricKind(string(exp.MetricKind)); err != nil {
			return fmt.Errorf("experiment %s: %w", exp.ID, err)
		}
	}
	for _, list := range [][]*models.OptimizationAction{snap.Backlog, snap.History} {
		for _, a := range list {
			if _, err := models.ParseActionStatus(string(a.Status)); err != nil {
				return fmt.Errorf("action %s: %w", a.ID, err)
			}
			if _, err := models.ParseActionPriority(string(a.Priority)); err != nil {
				return fmt.Errorf("action %s: %w", a.ID, err)
			}
		}
	}
	for name, events := range snap.Metrics {
		for _, ev := range events {
			if _, err := models.ParseMetricKind(string(ev.Kind)); err != nil {
				return fmt.Errorf("metric %s: %w", name, err)
			}
		}
	}
	for _, alert := range snap.Alerts {
		if _, err := models.ParseAlertSeverity(string(alert.Severity)); err != nil {
			return fmt.Errorf("alert %s: %w", alert.ID, err)
		}
	}
	return nil
}

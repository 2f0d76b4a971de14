package core

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// VariantSpec describes one variant when creating an experiment.
type VariantSpec struct {
	ID          string
	Description string
	Config      map[string]string
	// Weight is the traffic allocation for this variant. Zero weights across
	// the whole spec list trigger an equal split.
	Weight float64
}

// ExperimentConfig carries optional experiment settings; zero values fall back
// to the engine defaults.
type ExperimentConfig struct {
	MinSampleSize   int
	ConfidenceLevel float64
}

// ExperimentEngine manages the experiment lifecycle, sticky variant
// assignment, and outcome tracking. A single mutex makes the check-then-set in
// AssignVariant atomic: two concurrent callers can never bucket the same user
// into different variants.
type ExperimentEngine struct {
	mu          sync.Mutex
	experiments map[string]*models.Experiment
	order       []string
	// assignments maps experiment id -> user id -> variant id. Assignments
	// are created once and never reassigned.
	assignments map[string]map[string]string
	// samples maps experiment id -> variant id -> tracked outcome values.
	samples map[string]map[string][]float64

	defaultMinSample  int
	defaultConfidence float64
	randFloat         func() float64
	now               func() time.Time
}

// NewExperimentEngine creates an ExperimentEngine with the given defaults for
// experiments created without explicit settings.
func NewExperimentEngine(defaultMinSample int, defaultConfidence float64) *ExperimentEngine {
	if defaultMinSample <= 0 {
		defaultMinSample = 100
	}
	if defaultConfidence <= 0 {
		defaultConfidence = 0.95
	}
	return &ExperimentEngine{
		experiments:       make(map[string]*models.Experiment),
		assignments:       make(map[string]map[string]string),
		samples:           make(map[string]map[string][]float64),
		defaultMinSample:  defaultMinSample,
		defaultConfidence: defaultConfidence,
		randFloat:         rand.Float64,
		now:               time.Now,
	}
}

// SetRandSource overrides the uniform draw used for bucketing. Intended for tests.
func (e *ExperimentEngine) SetRandSource(randFloat func() float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.randFloat = randFloat
}

// SetClock overrides the engine's time source. Intended for tests.
func (e *ExperimentEngine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Create registers a new draft experiment. Traffic defaults to an equal 1/N
// split when every spec weight is zero; explicit weights are used as supplied
// and are not renormalized.
func (e *ExperimentEngine) Create(id, name string, variants []VariantSpec, primaryMetric string, kind models.MetricKind, cfg ExperimentConfig) (*models.Experiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id == "" {
		return nil, fmt.Errorf("%w: experiment id must not be empty", models.ErrValidation)
	}
	if _, exists := e.experiments[id]; exists {
		return nil, fmt.Errorf("%w: experiment %q already exists", models.ErrValidation, id)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: experiment %q needs at least one variant", models.ErrValidation, id)
	}
	if _, err := models.ParseMetricKind(string(kind)); err != nil {
		return nil, err
	}

	allZero := true
	for _, v := range variants {
		if v.Weight != 0 {
			allZero = false
			break
		}
	}

	exp := &models.Experiment{
		ID:              id,
		Name:            name,
		Status:          models.ExperimentDraft,
		Variants:        make(map[string]*models.Variant, len(variants)),
		Traffic:         make(map[string]float64, len(variants)),
		PrimaryMetric:   primaryMetric,
		MetricKind:      kind,
		MinSampleSize:   cfg.MinSampleSize,
		ConfidenceLevel: cfg.ConfidenceLevel,
		Created:         e.now(),
	}
	if exp.MinSampleSize <= 0 {
		exp.MinSampleSize = e.defaultMinSample
	}
	if exp.ConfidenceLevel <= 0 {
		exp.ConfidenceLevel = e.defaultConfidence
	}

	for _, spec := range variants {
		if spec.ID == "" {
			return nil, fmt.Errorf("%w: experiment %q has a variant with no id", models.ErrValidation, id)
		}
		if _, dup := exp.Variants[spec.ID]; dup {
			return nil, fmt.Errorf("%w: experiment %q has duplicate variant %q", models.ErrValidation, id, spec.ID)
		}
		exp.Variants[spec.ID] = &models.Variant{
			ID:          spec.ID,
			Description: spec.Description,
			Config:      spec.Config,
		}
		exp.VariantOrder = append(exp.VariantOrder, spec.ID)
		if allZero {
			exp.Traffic[spec.ID] = 1.0 / float64(len(variants))
		} else {
			exp.Traffic[spec.ID] = spec.Weight
		}
	}

	e.experiments[id] = exp
	e.order = append(e.order, id)
	e.assignments[id] = make(map[string]string)
	e.samples[id] = make(map[string][]float64)
	return exp, nil
}

// Get returns the experiment with the given id.
func (e *ExperimentEngine) Get(id string) (*models.Experiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.experiments[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown experiment %q", models.ErrValidation, id)
	}
	return exp, nil
}

// List returns all experiments in creation order.
func (e *ExperimentEngine) List() []*models.Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.Experiment, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.experiments[id])
	}
	return out
}

// Running returns the ids of experiments currently in the running state, in
// creation order.
func (e *ExperimentEngine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, id := range e.order {
		if e.experiments[id].Status == models.ExperimentRunning {
			out = append(out, id)
		}
	}
	return out
}

// Start moves an experiment to running and re-initializes its per-variant
// sample lists. Transitions are status changes only; no legality ordering is
// enforced.
func (e *ExperimentEngine) Start(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.experiments[id]
	if !ok {
		return fmt.Errorf("%w: unknown experiment %q", models.ErrValidation, id)
	}
	exp.Status = models.ExperimentRunning
	started := e.now()
	exp.Started = &started
	samples := make(map[string][]float64, len(exp.VariantOrder))
	for _, vid := range exp.VariantOrder {
		samples[vid] = []float64{}
	}
	e.samples[id] = samples
	return nil
}

// Pause moves an experiment to paused.
func (e *ExperimentEngine) Pause(id string) error {
	return e.setStatus(id, models.ExperimentPaused, false)
}

// Stop moves an experiment to completed and stamps its end time.
func (e *ExperimentEngine) Stop(id string) error {
	return e.setStatus(id, models.ExperimentCompleted, true)
}

func (e *ExperimentEngine) setStatus(id string, status models.ExperimentStatus, stampEnd bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.experiments[id]
	if !ok {
		return fmt.Errorf("%w: unknown experiment %q", models.ErrValidation, id)
	}
	exp.Status = status
	if stampEnd {
		ended := e.now()
		exp.Ended = &ended
	}
	return nil
}

// AssignVariant returns the sticky variant for the user, creating the
// assignment on first call. New users are assigned the declared winner when
// one exists; otherwise a uniform draw walks the variants in insertion order
// accumulating traffic weights, falling back to the last variant when rounding
// leaves none selected.
func (e *ExperimentEngine) AssignVariant(userID, experimentID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, ok := e.experiments[experimentID]
	if !ok {
		return "", fmt.Errorf("%w: unknown experiment %q", models.ErrValidation, experimentID)
	}

	if assigned, ok := e.assignments[experimentID][userID]; ok {
		return assigned, nil
	}

	variantID := exp.Winner
	if variantID == "" {
		r := e.randFloat()
		var cum float64
		for _, vid := range exp.VariantOrder {
			cum += exp.Traffic[vid]
			if r < cum {
				variantID = vid
				break
			}
		}
		if variantID == "" {
			// Floating-point rounding left no variant selected.
			variantID = exp.VariantOrder[len(exp.VariantOrder)-1]
		}
	}

	e.assignments[experimentID][userID] = variantID
	if v, ok := exp.Variants[variantID]; ok {
		v.Users = append(v.Users, userID)
	}
	return variantID, nil
}

// AssignedVariant returns the user's existing assignment without creating one.
func (e *ExperimentEngine) AssignedVariant(userID, experimentID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	variantID, ok := e.assignments[experimentID][userID]
	return variantID, ok
}

// TrackConversion records a binary outcome for the user's variant. Silent
// no-op when the experiment is unknown or not running, or the user has no
// assignment.
func (e *ExperimentEngine) TrackConversion(userID, experimentID string, converted bool) {
	value := 0.0
	if converted {
		value = 1.0
	}
	e.TrackMetric(userID, experimentID, value)
}

// TrackMetric records a continuous outcome for the user's variant. Silent
// no-op when the experiment is unknown or not running, or the user has no
// assignment. This is the defined contract, not an error path.
func (e *ExperimentEngine) TrackMetric(userID, experimentID string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, ok := e.experiments[experimentID]
	if !ok || exp.Status != models.ExperimentRunning {
		return
	}
	variantID, ok := e.assignments[experimentID][userID]
	if !ok {
		return
	}
	e.samples[experimentID][variantID] = append(e.samples[experimentID][variantID], value)
}

// SampleCount returns the number of tracked outcomes for a variant.
func (e *ExperimentEngine) SampleCount(experimentID, variantID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples[experimentID][variantID])
}

// --- Persistence ---

// Snapshot returns deep copies of the engine state for persistence.
func (e *ExperimentEngine) Snapshot() ([]*models.Experiment, map[string]map[string]string, map[string]map[string][]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	experiments := make([]*models.Experiment, 0, len(e.order))
	for _, id := range e.order {
		experiments = append(experiments, e.experiments[id])
	}
	assignments := make(map[string]map[string]string, len(e.assignments))
	for expID, users := range e.assignments {
		m := make(map[string]string, len(users))
		for u, v := range users {
			m[u] = v
		}
		assignments[expID] = m
	}
	samples := make(map[string]map[string][]float64, len(e.samples))
	for expID, variants := range e.samples {
		m := make(map[string][]float64, len(variants))
		for v, values := range variants {
			m[v] = append([]float64(nil), values...)
		}
		samples[expID] = m
	}
	return experiments, assignments, samples
}

// Restore replaces the engine state from a snapshot. Experiment creation
// order follows the snapshot slice order.
func (e *ExperimentEngine) Restore(experiments []*models.Experiment, assignments map[string]map[string]string, samples map[string]map[string][]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.experiments = make(map[string]*models.Experiment, len(experiments))
	e.order = e.order[:0]
	for _, exp := range experiments {
		e.experiments[exp.ID] = exp
		e.order = append(e.order, exp.ID)
	}

	e.assignments = make(map[string]map[string]string, len(e.experiments))
	e.samples = make(map[string]map[string][]float64, len(e.experiments))
	for _, exp := range experiments {
		e.assignments[exp.ID] = make(map[string]string)
		e.samples[exp.ID] = make(map[string][]float64)
	}
	for expID, users := range assignments {
		if _, ok := e.assignments[expID]; !ok {
			e.assignments[expID] = make(map[string]string)
		}
		for u, v := range users {
			e.assignments[expID][u] = v
		}
	}
	for expID, variants := range samples {
		if _, ok := e.samples[expID]; !ok {
			e.samples[expID] = make(map[string][]float64)
		}
		for v, values := range variants {
			e.samples[expID][v] = append([]float64(nil), values...)
		}
	}
}

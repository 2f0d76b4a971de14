package core

import (
	"fmt"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// ExperimentTemplate is a predefined experiment the bot layer can launch by
// name.
type ExperimentTemplate struct {
	ID            string
	Name          string
	Variants      []VariantSpec
	PrimaryMetric string
	MetricKind    models.MetricKind
	MinSampleSize int
}

// Built-in experiment template ids.
const (
	TemplateOnboardingSteps   = "onboarding_steps"
	TemplateQuickActions      = "quick_actions_layout"
	TemplatePremiumUpsell     = "premium_upsell_copy"
	TemplateShareMessageStyle = "share_message_style"
)

// builtinTemplates lists the predefined experiments in a fixed order.
var builtinTemplates = []ExperimentTemplate{
	{
		ID:   TemplateOnboardingSteps,
		Name: "Onboarding step count",
		Variants: []VariantSpec{
			{ID: models.ControlVariant, Description: "Five-step onboarding", Weight: 0.5},
			{ID: "variant_a", Description: "Three-step onboarding", Weight: 0.5},
		},
		PrimaryMetric: MetricOnboardingCompleted,
		MetricKind:    models.KindCounter,
		MinSampleSize: 100,
	},
	{
		ID:   TemplateQuickActions,
		Name: "Quick actions layout",
		Variants: []VariantSpec{
			{ID: models.ControlVariant, Description: "Two-column grid"},
			{ID: "compact", Description: "Single row of icons"},
			{ID: "detailed", Description: "List with captions"},
		},
		PrimaryMetric: MetricButtonClick,
		MetricKind:    models.KindCounter,
		MinSampleSize: 200,
	},
	{
		ID:   TemplatePremiumUpsell,
		Name: "Premium upsell copy",
		Variants: []VariantSpec{
			{ID: models.ControlVariant, Description: "Feature list"},
			{ID: "value_focus", Description: "Savings-led pitch"},
			{ID: "social_proof", Description: "Testimonial-led pitch"},
		},
		PrimaryMetric: "premium.purchase",
		MetricKind:    models.KindCounter,
		MinSampleSize: 150,
	},
	{
		ID:   TemplateShareMessageStyle,
		Name: "Share message style",
		Variants: []VariantSpec{
			{ID: models.ControlVariant, Description: "Plain referral text"},
			{ID: "emoji", Description: "Emoji-heavy referral text"},
			{ID: "stats", Description: "Savings-stats referral text"},
		},
		PrimaryMetric: "referral.share",
		MetricKind:    models.KindCounter,
		MinSampleSize: 150,
	},
}

// Templates returns the built-in experiment templates in their fixed order.
func Templates() []ExperimentTemplate {
	return append([]ExperimentTemplate(nil), builtinTemplates...)
}

// LookupTemplate returns the built-in template with the given id.
func LookupTemplate(id string) (ExperimentTemplate, error) {
	for _, tmpl := range builtinTemplates {
		if tmpl.ID == id {
			return tmpl, nil
		}
	}
	return ExperimentTemplate{}, fmt.Errorf("%w: unknown experiment template %q", models.ErrValidation, id)
}

// CreateFromTemplate creates a draft experiment from a built-in template. The
// experiment id equals the template id.
func (e *ExperimentEngine) CreateFromTemplate(templateID string) (*models.Experiment, error) {
	tmpl, err := LookupTemplate(templateID)
	if err != nil {
		return nil, err
	}
	return e.Create(tmpl.ID, tmpl.Name, tmpl.Variants, tmpl.PrimaryMetric, tmpl.MetricKind,
		ExperimentConfig{MinSampleSize: tmpl.MinSampleSize})
}

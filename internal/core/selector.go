package core

import (
	"math/rand"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// Static message templates keyed by variant id. The control entry doubles as
// the default copy.
var quickActionTexts = map[string]string{
	models.ControlVariant: "What would you like to do?\n[Scan flights] [My alerts]\n[Invite a friend] [Settings]",
	"compact":             "Pick one: ✈️ Scan | 🔔 Alerts | 🎁 Invite | ⚙️ Settings",
	"detailed":            "What would you like to do?\n✈️ Scan flights — find today's best fares\n🔔 My alerts — manage price watches\n🎁 Invite a friend — earn bonus coins\n⚙️ Settings — language and currency",
}

var premiumUpsellTexts = map[string]string{
	models.ControlVariant: "Go Premium: unlimited price alerts, instant notifications, and priority scans.",
	"value_focus":         "Premium members save an average of $120 per trip. Unlock unlimited alerts now.",
	"social_proof":        "Join 12,000 travelers already on Premium — \"I caught a fare drop the same minute it happened.\"",
}

var shareMessageTexts = map[string]string{
	models.ControlVariant: "I use Growth Bot to catch cheap flights. Join with my link and we both get bonus coins.",
	"emoji":               "✈️💸 Cheap flights, zero effort! Join me on Growth Bot and grab your bonus coins 🎁",
	"stats":               "Growth Bot found me flights 30% cheaper on average. Use my link and start with bonus coins.",
}

// MessageSelector picks user-facing copy through the variant a user is
// assigned in the matching experiment, falling back to a uniform random
// template when no experiment applies.
type MessageSelector struct {
	engine   *ExperimentEngine
	randIntn func(n int) int
}

// NewMessageSelector creates a MessageSelector over the given engine.
func NewMessageSelector(engine *ExperimentEngine) *MessageSelector {
	return &MessageSelector{engine: engine, randIntn: rand.Intn}
}

// SetRandSource overrides the fallback draw. Intended for tests.
func (m *MessageSelector) SetRandSource(randIntn func(n int) int) {
	m.randIntn = randIntn
}

// QuickActionsForContext returns the quick-actions keyboard text for the user.
func (m *MessageSelector) QuickActionsForContext(userID, context string) string {
	_ = context // reserved for context-specific layouts
	return m.pick(userID, TemplateQuickActions, quickActionTexts)
}

// PremiumUpsellMessage returns the paywall pitch for the user.
func (m *MessageSelector) PremiumUpsellMessage(userID string) string {
	return m.pick(userID, TemplatePremiumUpsell, premiumUpsellTexts)
}

// ShareMessage returns the referral share text for the user.
func (m *MessageSelector) ShareMessage(userID string) string {
	return m.pick(userID, TemplateShareMessageStyle, shareMessageTexts)
}

// pick resolves the user's variant in the named experiment when it is
// running or rolled out; otherwise it picks uniformly at random among the
// templates, walking variant order for determinism of the candidate set.
func (m *MessageSelector) pick(userID, experimentID string, texts map[string]string) string {
	exp, err := m.engine.Get(experimentID)
	if err == nil && (exp.Status == models.ExperimentRunning || exp.Status == models.ExperimentRolledOut) {
		variantID, err := m.engine.AssignVariant(userID, experimentID)
		if err == nil {
			if text, ok := texts[variantID]; ok {
				return text
			}
		}
	}

	candidates := orderedTexts(experimentID, texts)
	if len(candidates) == 0 {
		return ""
	}
	return candidates[m.randIntn(len(candidates))]
}

// orderedTexts returns the template texts in the template's variant order so
// the random fallback indexes a stable candidate list.
func orderedTexts(experimentID string, texts map[string]string) []string {
	tmpl, err := LookupTemplate(experimentID)
	if err != nil {
		return nil
	}
	var out []string
	for _, spec := range tmpl.Variants {
		if text, ok := texts[spec.ID]; ok {
			out = append(out, text)
		}
	}
	return out
}

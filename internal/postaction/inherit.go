package postaction

import (
	"context"
	"fmt"

	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/store"
)

// Settings layers, in resolution order. Later layers win per field.
const (
	LayerGlobal = "global_default"
	LayerModel  = "model_default"
	LayerParent = "parent"
)

// Provenance records which layer supplied each resolved field, for debugging
// inheritance surprises.
type Provenance map[string]string

// ResolvedSettings is the effective settings object for one new child node.
// The merge never mutates the shared defaults records.
type ResolvedSettings struct {
	Settings models.ModelSettings

	ThreadMode          string
	ChildThreadStrategy string
	WebSearchOn         bool
	ConfluenceEnabled   bool

	// DefaultAdminPrompt and DefaultUserPrompt carry the global fallback
	// content for executors that seed children with it.
	DefaultAdminPrompt string
	DefaultUserPrompt  string

	Provenance Provenance
}

// ResolveChildSettings merges the three settings layers for a new child of
// parent (nil = top level): global defaults, then the chosen model's defaults
// (only fields flagged on for that model), then the parent's own overrides.
// Action-type children additionally inherit response_format from the
// triggering prompt so they can request structured output themselves.
func ResolveChildSettings(ctx context.Context, st store.Store, parent *models.PromptNode, nodeType string, trigger *models.PromptNode) (*ResolvedSettings, error) {
	globals, err := st.GetGlobalDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load global defaults: %w", err)
	}

	r := &ResolvedSettings{
		DefaultAdminPrompt: globals.DefAdminPrompt,
		DefaultUserPrompt:  globals.DefaultUserPrompt,
		Provenance:         Provenance{},
	}

	model := globals.DefaultModel
	r.Provenance["model"] = LayerGlobal
	if parent != nil && parent.ModelOn && parent.Model != "" {
		model = parent.Model
		r.Provenance["model"] = LayerParent
	}
	r.Settings = models.ModelSettings{Model: model, ModelOn: true}

	defaults, err := st.GetModelDefaults(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("load model defaults: %w", err)
	}
	if defaults != nil {
		applyModelDefaults(r, defaults)
	}

	if parent != nil {
		applyParentOverrides(r, parent)
	}

	if nodeType == models.NodeTypeAction && trigger != nil && trigger.ResponseFormatOn {
		r.Settings.ResponseFormat = trigger.ResponseFormat
		r.Settings.ResponseFormatOn = true
		r.Provenance["response_format"] = LayerParent
	}

	return r, nil
}

// applyModelDefaults copies only the fields explicitly flagged on for the
// model.
func applyModelDefaults(r *ResolvedSettings, d *models.ModelDefaults) {
	if d.TemperatureOn && d.Temperature != nil {
		r.Settings.Temperature, r.Settings.TemperatureOn = cloneFloat(d.Temperature), true
		r.Provenance["temperature"] = LayerModel
	}
	if d.MaxTokensOn && d.MaxTokens != nil {
		r.Settings.MaxTokens, r.Settings.MaxTokensOn = cloneInt(d.MaxTokens), true
		r.Provenance["max_tokens"] = LayerModel
	}
	if d.MaxCompletionTokensOn && d.MaxCompletionTokens != nil {
		r.Settings.MaxCompletionTokens, r.Settings.MaxCompletionTokensOn = cloneInt(d.MaxCompletionTokens), true
		r.Provenance["max_completion_tokens"] = LayerModel
	}
	if d.TopPOn && d.TopP != nil {
		r.Settings.TopP, r.Settings.TopPOn = cloneFloat(d.TopP), true
		r.Provenance["top_p"] = LayerModel
	}
	if d.FrequencyPenaltyOn && d.FrequencyPenalty != nil {
		r.Settings.FrequencyPenalty, r.Settings.FrequencyPenaltyOn = cloneFloat(d.FrequencyPenalty), true
		r.Provenance["frequency_penalty"] = LayerModel
	}
	if d.PresencePenaltyOn && d.PresencePenalty != nil {
		r.Settings.PresencePenalty, r.Settings.PresencePenaltyOn = cloneFloat(d.PresencePenalty), true
		r.Provenance["presence_penalty"] = LayerModel
	}
}

// applyParentOverrides copies the explicitly inheritable conversation fields
// and, where the parent carries its own override, the sampling parameters.
// A parent override wins over a model default; otherwise the model default
// stands.
func applyParentOverrides(r *ResolvedSettings, parent *models.PromptNode) {
	r.ThreadMode = parent.ThreadMode
	r.ChildThreadStrategy = parent.ChildThreadStrategy
	r.WebSearchOn = parent.WebSearchOn
	r.ConfluenceEnabled = parent.ConfluenceEnabled

	if parent.TemperatureOn && parent.Temperature != nil {
		r.Settings.Temperature, r.Settings.TemperatureOn = cloneFloat(parent.Temperature), true
		r.Provenance["temperature"] = LayerParent
	}
	if parent.MaxTokensOn && parent.MaxTokens != nil {
		r.Settings.MaxTokens, r.Settings.MaxTokensOn = cloneInt(parent.MaxTokens), true
		r.Provenance["max_tokens"] = LayerParent
	}
	if parent.MaxCompletionTokensOn && parent.MaxCompletionTokens != nil {
		r.Settings.MaxCompletionTokens, r.Settings.MaxCompletionTokensOn = cloneInt(parent.MaxCompletionTokens), true
		r.Provenance["max_completion_tokens"] = LayerParent
	}
	if parent.TopPOn && parent.TopP != nil {
		r.Settings.TopP, r.Settings.TopPOn = cloneFloat(parent.TopP), true
		r.Provenance["top_p"] = LayerParent
	}
	if parent.FrequencyPenaltyOn && parent.FrequencyPenalty != nil {
		r.Settings.FrequencyPenalty, r.Settings.FrequencyPenaltyOn = cloneFloat(parent.FrequencyPenalty), true
		r.Provenance["frequency_penalty"] = LayerParent
	}
	if parent.PresencePenaltyOn && parent.PresencePenalty != nil {
		r.Settings.PresencePenalty, r.Settings.PresencePenaltyOn = cloneFloat(parent.PresencePenalty), true
		r.Provenance["presence_penalty"] = LayerParent
	}
}

func cloneFloat(v *float64) *float64 {
	cp := *v
	return &cp
}

func cloneInt(v *int) *int {
	cp := *v
	return &cp
}

package postaction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/store"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func defaultsStore(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	st.SetGlobalDefaults(models.GlobalDefaults{
		DefAdminPrompt:    "You are a helpful assistant.",
		DefaultUserPrompt: "Continue.",
		DefaultModel:      "gpt-4o",
	})
	st.SetModelDefaults(models.ModelDefaults{
		Model:         "gpt-4o",
		Temperature:   floatPtr(0.7),
		TemperatureOn: true,
		MaxTokens:     intPtr(4096),
		MaxTokensOn:   true,
		TopP:          floatPtr(0.9),
		TopPOn:        false, // off for this model, must not apply
	})
	return st
}

func TestResolveChildSettingsGlobalAndModelLayers(t *testing.T) {
	st := defaultsStore(t)

	r, err := ResolveChildSettings(context.Background(), st, nil, models.NodeTypeStandard, nil)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", r.Settings.Model)
	assert.True(t, r.Settings.ModelOn)
	assert.Equal(t, LayerGlobal, r.Provenance["model"])

	require.NotNil(t, r.Settings.Temperature)
	assert.Equal(t, 0.7, *r.Settings.Temperature)
	assert.Equal(t, LayerModel, r.Provenance["temperature"])

	require.NotNil(t, r.Settings.MaxTokens)
	assert.Equal(t, 4096, *r.Settings.MaxTokens)

	// top_p is gated off for the model and must not leak through.
	assert.Nil(t, r.Settings.TopP)
	assert.False(t, r.Settings.TopPOn)

	assert.Equal(t, "You are a helpful assistant.", r.DefaultAdminPrompt)
}

func TestResolveChildSettingsUnknownModelIsBare(t *testing.T) {
	st := store.NewMemory()
	st.SetGlobalDefaults(models.GlobalDefaults{DefaultModel: "mystery-model"})

	r, err := ResolveChildSettings(context.Background(), st, nil, models.NodeTypeStandard, nil)
	require.NoError(t, err)

	assert.Equal(t, "mystery-model", r.Settings.Model)
	assert.True(t, r.Settings.ModelOn)
	assert.Nil(t, r.Settings.Temperature)
	assert.Nil(t, r.Settings.MaxTokens)
}

func TestResolveChildSettingsParentOverridesModelDefault(t *testing.T) {
	st := defaultsStore(t)

	parent := &models.PromptNode{
		ModelSettings: models.ModelSettings{
			Model:         "gpt-4o",
			ModelOn:       true,
			Temperature:   floatPtr(0.2),
			TemperatureOn: true,
		},
		ThreadMode:          "linear",
		ChildThreadStrategy: "fresh",
		WebSearchOn:         true,
		ConfluenceEnabled:   true,
	}

	r, err := ResolveChildSettings(context.Background(), st, parent, models.NodeTypeStandard, nil)
	require.NoError(t, err)

	// Parent's own override wins over the model default.
	require.NotNil(t, r.Settings.Temperature)
	assert.Equal(t, 0.2, *r.Settings.Temperature)
	assert.Equal(t, LayerParent, r.Provenance["temperature"])

	// Model default stands where the parent has no override.
	require.NotNil(t, r.Settings.MaxTokens)
	assert.Equal(t, 4096, *r.Settings.MaxTokens)
	assert.Equal(t, LayerModel, r.Provenance["max_tokens"])

	// Conversation fields copy through.
	assert.Equal(t, "linear", r.ThreadMode)
	assert.Equal(t, "fresh", r.ChildThreadStrategy)
	assert.True(t, r.WebSearchOn)
	assert.True(t, r.ConfluenceEnabled)
}

func TestResolveChildSettingsNeverMutatesDefaults(t *testing.T) {
	st := defaultsStore(t)

	r, err := ResolveChildSettings(context.Background(), st, nil, models.NodeTypeStandard, nil)
	require.NoError(t, err)
	*r.Settings.Temperature = 99

	again, err := ResolveChildSettings(context.Background(), st, nil, models.NodeTypeStandard, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.7, *again.Settings.Temperature)
}

func TestResolveChildSettingsActionInheritsResponseFormat(t *testing.T) {
	st := defaultsStore(t)

	trigger := &models.PromptNode{
		ModelSettings: models.ModelSettings{
			ResponseFormat:   json.RawMessage(`{"type":"json_object"}`),
			ResponseFormatOn: true,
		},
	}

	r, err := ResolveChildSettings(context.Background(), st, nil, models.NodeTypeAction, trigger)
	require.NoError(t, err)
	assert.True(t, r.Settings.ResponseFormatOn)
	assert.JSONEq(t, `{"type":"json_object"}`, string(r.Settings.ResponseFormat))

	// Standard children do not inherit it.
	r, err = ResolveChildSettings(context.Background(), st, nil, models.NodeTypeStandard, trigger)
	require.NoError(t, err)
	assert.False(t, r.Settings.ResponseFormatOn)
}

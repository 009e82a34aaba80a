package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/backend/internal/llm"
	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/postaction"
	"github.com/promptforge/backend/internal/store"
)

type stubGateway struct {
	content string
	lastReq llm.ChatRequest
}

func (g *stubGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.lastReq = req
	return &llm.ChatResponse{
		Provider:    "stub",
		Model:       req.Model,
		Content:     g.content,
		TotalTokens: 10,
	}, nil
}

func (g *stubGateway) Provider(string) (llm.Provider, error) { return nil, nil }
func (g *stubGateway) ListModels() []llm.ModelInfo           { return nil }

func floatPtr(v float64) *float64 { return &v }

func TestRunnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SetGlobalDefaults(models.GlobalDefaults{DefaultModel: "gpt-4o"})

	node, err := st.InsertNode(ctx, &models.PromptNode{
		PositionLex:      "V",
		PromptName:       "Outline",
		InputAdminPrompt: "You write outlines about {{topic}}.",
		InputUserPrompt:  "Make chapters for {{topic}}.",
		ModelSettings: models.ModelSettings{
			Model:         "gpt-4o",
			ModelOn:       true,
			Temperature:   floatPtr(0.3),
			TemperatureOn: true,
			ResponseFormat:   json.RawMessage(`{"type":"json_object"}`),
			ResponseFormatOn: true,
		},
		PostActionID: postaction.ActionChildrenJSON,
		PostActionConfig: json.RawMessage(`{
			"json_path": "chapters",
			"name_field": "title",
			"variable_assignments": {"enabled": true, "auto_create_variables": true}
		}`),
	})
	require.NoError(t, err)

	require.NoError(t, st.InsertVariable(ctx, &models.PromptVariable{
		PromptRowID:   node.RowID,
		VariableName:  "topic",
		VariableValue: "gardening",
	}))

	gw := &stubGateway{content: "```json\n" + `{
		"chapters": [{"title": "Soil"}, {"title": "Seeds"}],
		"variable_assignments": [{"name": "chapter_count", "value": 2}]
	}` + "\n```"}

	runner := NewRunner(st, gw, postaction.NewRegistry(nil), "gpt-4o-mini")

	result, err := runner.Run(ctx, node.RowID, nil)
	require.NoError(t, err)

	// Variables substituted before the model sees the prompts.
	require.Len(t, gw.lastReq.Messages, 2)
	assert.Equal(t, "You write outlines about gardening.", gw.lastReq.Messages[0].Content)
	assert.Equal(t, "Make chapters for gardening.", gw.lastReq.Messages[1].Content)

	// Gated settings transfer onto the request.
	assert.Equal(t, "gpt-4o", gw.lastReq.Model)
	require.NotNil(t, gw.lastReq.Temperature)
	assert.Equal(t, 0.3, *gw.lastReq.Temperature)
	assert.True(t, gw.lastReq.JSONResponse)

	// Fences stripped, JSON parsed, action executed.
	require.NotNil(t, result.Action)
	assert.True(t, result.Action.Success)
	assert.Equal(t, 2, result.Action.CreatedCount)

	nodeID := node.RowID
	kids, err := st.ListChildren(ctx, &nodeID)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "Soil", kids[0].PromptName)

	// Assignments applied from the same parsed response.
	require.NotNil(t, result.Assignments)
	assert.Equal(t, 1, result.Assignments.Processed)
	vars, err := st.ListVariables(ctx, node.RowID)
	require.NoError(t, err)
	require.Len(t, vars, 2)
}

func TestRunnerUnknownVariableLeftInPlace(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	node, err := st.InsertNode(ctx, &models.PromptNode{
		PositionLex:     "V",
		PromptName:      "Plain",
		InputUserPrompt: "Tell me about {{mystery}}.",
	})
	require.NoError(t, err)

	gw := &stubGateway{content: "plain text answer"}
	runner := NewRunner(st, gw, postaction.NewRegistry(nil), "gpt-4o-mini")

	result, err := runner.Run(ctx, node.RowID, nil)
	require.NoError(t, err)

	assert.Equal(t, "Tell me about {{mystery}}.", gw.lastReq.Messages[0].Content)
	assert.Equal(t, "gpt-4o-mini", gw.lastReq.Model)
	assert.Nil(t, result.Action)

	// Non-JSON output still yields a well-formed parsed document.
	assert.JSONEq(t, `"plain text answer"`, string(result.Parsed))
}

func TestParseResponseJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n[1,2]\n```", `[1,2]`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
		{"not json wraps as string", "hello there", `"hello there"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponseJSON(tt.content)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

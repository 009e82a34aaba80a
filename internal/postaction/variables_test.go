package postaction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/store"
)

func variableByName(t *testing.T, st *store.Memory, promptID uuid.UUID, name string) *models.PromptVariable {
	t.Helper()
	vars, err := st.ListVariables(context.Background(), promptID)
	require.NoError(t, err)
	for i := range vars {
		if vars[i].VariableName == name {
			return &vars[i]
		}
	}
	return nil
}

func TestProcessAssignmentsUpdatesAndAutoCreates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	promptID := uuid.New()

	require.NoError(t, st.InsertVariable(ctx, &models.PromptVariable{
		PromptRowID:   promptID,
		VariableName:  "city",
		VariableValue: "old",
	}))

	response := json.RawMessage(`{
		"variable_assignments": [
			{"name": "city", "value": "Paris"},
			{"name": "new_var", "value": 42}
		]
	}`)

	res := ProcessAssignments(ctx, st, promptID, response, AssignmentConfig{
		Enabled:             true,
		AutoCreateVariables: true,
	})
	assert.Equal(t, 2, res.Processed)
	assert.Empty(t, res.Errors)

	assert.Equal(t, "Paris", variableByName(t, st, promptID, "city").VariableValue)

	created := variableByName(t, st, promptID, "new_var")
	require.NotNil(t, created)
	assert.Equal(t, "42", created.VariableValue)
	assert.Equal(t, "Auto-created by AI response", created.Description)
}

func TestProcessAssignmentsInvalidEntriesDoNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	promptID := uuid.New()

	response := json.RawMessage(`{
		"variable_assignments": [
			{"name": "ok_one", "value": "a"},
			{"name": "9starts-with-digit", "value": "b"},
			{"value": "no name at all"},
			{"name": "ok_two", "value": "c"}
		]
	}`)

	res := ProcessAssignments(ctx, st, promptID, response, AssignmentConfig{
		Enabled:             true,
		AutoCreateVariables: true,
	})
	assert.Equal(t, 2, res.Processed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "9starts-with-digit", res.Errors[0].Name)
	assert.Contains(t, res.Errors[0].Error, "invalid variable name")
	assert.Contains(t, res.Errors[1].Error, "missing name")

	assert.NotNil(t, variableByName(t, st, promptID, "ok_one"))
	assert.NotNil(t, variableByName(t, st, promptID, "ok_two"))
}

func TestProcessAssignmentsUnknownNameWithoutAutoCreateIsSkipped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	promptID := uuid.New()

	response := json.RawMessage(`{"variable_assignments": [{"name": "unknown", "value": "x"}]}`)

	res := ProcessAssignments(ctx, st, promptID, response, AssignmentConfig{Enabled: true})
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, res.Errors)
	assert.Nil(t, variableByName(t, st, promptID, "unknown"))
}

func TestProcessAssignmentsDisabledIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	promptID := uuid.New()

	response := json.RawMessage(`{"variable_assignments": [{"name": "city", "value": "Paris"}]}`)

	res := ProcessAssignments(ctx, st, promptID, response, AssignmentConfig{Enabled: false})
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, res.Errors)

	vars, err := st.ListVariables(ctx, promptID)
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestProcessAssignmentsMissingArrayIsQuietlyIgnored(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	promptID := uuid.New()

	for _, response := range []string{
		`{}`,
		`{"variable_assignments": "not an array"}`,
		`{"variable_assignments": {"name": "x"}}`,
		`plain text, not json`,
	} {
		res := ProcessAssignments(ctx, st, promptID, json.RawMessage(response), AssignmentConfig{
			Enabled:             true,
			AutoCreateVariables: true,
		})
		assert.Equal(t, 0, res.Processed, "response=%s", response)
		assert.Empty(t, res.Errors, "response=%s", response)
	}
}

func TestProcessAssignmentsCustomPathAndValueCoercion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	promptID := uuid.New()

	response := json.RawMessage(`{
		"out": {"vars": [
			{"name": "s", "value": "text"},
			{"name": "n", "value": 3.5},
			{"name": "b", "value": true},
			{"name": "o", "value": {"k": 1}},
			{"name": "z", "value": null},
			{"name": "m"}
		]}
	}`)

	res := ProcessAssignments(ctx, st, promptID, response, AssignmentConfig{
		Enabled:             true,
		JSONPath:            "out.vars",
		AutoCreateVariables: true,
	})
	assert.Equal(t, 6, res.Processed)

	assert.Equal(t, "text", variableByName(t, st, promptID, "s").VariableValue)
	assert.Equal(t, "3.5", variableByName(t, st, promptID, "n").VariableValue)
	assert.Equal(t, "true", variableByName(t, st, promptID, "b").VariableValue)
	assert.JSONEq(t, `{"k":1}`, variableByName(t, st, promptID, "o").VariableValue)
	assert.Equal(t, "", variableByName(t, st, promptID, "z").VariableValue)
	assert.Equal(t, "", variableByName(t, st, promptID, "m").VariableValue)
}

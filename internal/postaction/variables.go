package postaction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/store"
)

const (
	defaultAssignmentsPath = "variable_assignments"
	autoCreatedDescription = "Auto-created by AI response"
)

var variableNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,99}$`)

// AssignmentConfig controls variable extraction from an AI response.
type AssignmentConfig struct {
	Enabled             bool   `json:"enabled"`
	JSONPath            string `json:"json_path,omitempty"`
	AutoCreateVariables bool   `json:"auto_create_variables,omitempty"`
}

// AssignmentResult reports how many assignments were applied and any per-item
// problems. Per-item problems never abort the batch.
type AssignmentResult struct {
	Processed int         `json:"processed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// ProcessAssignments extracts a {name, value} array from the AI response and
// upserts prompt-scoped variables. It never returns an error: a total store
// failure is captured as a single error entry, everything else degrades
// per item.
func ProcessAssignments(ctx context.Context, st store.Store, promptRowID uuid.UUID, response json.RawMessage, cfg AssignmentConfig) *AssignmentResult {
	res := &AssignmentResult{}
	if !cfg.Enabled || promptRowID == uuid.Nil || len(response) == 0 {
		return res
	}

	path := cfg.JSONPath
	if path == "" {
		path = defaultAssignmentsPath
	}
	assignments := resolvePath(response, path)
	if !assignments.IsArray() {
		// The model simply didn't emit assignments this run.
		return res
	}

	existing, err := st.ListVariables(ctx, promptRowID)
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Error: fmt.Sprintf("load existing variables: %v", err)})
		return res
	}
	byName := make(map[string]uuid.UUID, len(existing))
	for _, v := range existing {
		byName[v.VariableName] = v.ID
	}

	for _, entry := range assignments.Array() {
		name := entry.Get("name").String()
		if name == "" {
			res.Errors = append(res.Errors, ItemError{Error: "assignment entry missing name"})
			continue
		}
		if !variableNamePattern.MatchString(name) {
			res.Errors = append(res.Errors, ItemError{Name: name, Error: "invalid variable name: must start with a letter and contain only letters, digits, underscore, or hyphen (max 100 chars)"})
			continue
		}

		value := stringifyAssignmentValue(entry.Get("value"))

		if id, ok := byName[name]; ok {
			if err := st.UpdateVariableValue(ctx, id, value); err != nil {
				res.Errors = append(res.Errors, ItemError{Name: name, Error: fmt.Sprintf("update: %v", err)})
				continue
			}
			res.Processed++
			continue
		}

		if !cfg.AutoCreateVariables {
			// Unknown name without auto-create is expected, not exceptional.
			continue
		}

		v := &models.PromptVariable{
			PromptRowID:   promptRowID,
			VariableName:  name,
			VariableValue: value,
			Description:   autoCreatedDescription,
		}
		if err := st.InsertVariable(ctx, v); err != nil {
			res.Errors = append(res.Errors, ItemError{Name: name, Error: fmt.Sprintf("create: %v", err)})
			continue
		}
		byName[name] = v.ID
		res.Processed++
	}

	return res
}

// stringifyAssignmentValue renders an assignment value as a string, treating
// null or missing values as empty.
func stringifyAssignmentValue(v gjson.Result) string {
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	if v.Type == gjson.String {
		return v.String()
	}
	return v.Raw
}

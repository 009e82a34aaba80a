// Package orchestrator runs one prompt node end to end: substitute
// variables, call the model, parse the response, then fan out into
// post-actions and variable assignments.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/promptforge/backend/internal/llm"
	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/postaction"
	"github.com/promptforge/backend/internal/store"
)

var variableRefPattern = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_-]{0,99})\s*\}\}`)

type Runner struct {
	store        store.Store
	gateway      llm.Gateway
	registry     *postaction.Registry
	defaultModel string
}

func NewRunner(st store.Store, gw llm.Gateway, registry *postaction.Registry, defaultModel string) *Runner {
	return &Runner{
		store:        st,
		gateway:      gw,
		registry:     registry,
		defaultModel: defaultModel,
	}
}

// RunResult is the full outcome of executing one node.
type RunResult struct {
	NodeID      uuid.UUID                    `json:"node_id"`
	Content     string                       `json:"content"`
	Parsed      json.RawMessage              `json:"parsed,omitempty"`
	Chat        *llm.ChatResponse            `json:"chat,omitempty"`
	Action      *postaction.Result           `json:"action,omitempty"`
	Assignments *postaction.AssignmentResult `json:"assignments,omitempty"`
}

// Run executes the node's prompt and everything hanging off the response.
// Post-action and assignment failures are reported inside the result, not as
// errors: once the model has answered, the run itself has happened.
func (r *Runner) Run(ctx context.Context, nodeID uuid.UUID, userID *uuid.UUID) (*RunResult, error) {
	node, err := r.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("load node %s: %w", nodeID, err)
	}

	adminPrompt, userPrompt, err := r.renderPrompts(ctx, node)
	if err != nil {
		return nil, err
	}

	req := r.chatRequest(node, adminPrompt, userPrompt)
	resp, err := r.gateway.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat for node %s: %w", nodeID, err)
	}

	result := &RunResult{
		NodeID:  nodeID,
		Content: resp.Content,
		Chat:    resp,
		Parsed:  ParseResponseJSON(resp.Content),
	}

	cfg := decodeActionConfig(node.PostActionConfig)

	if node.PostActionID != "" {
		result.Action = r.registry.Execute(ctx, node.PostActionID, postaction.Input{
			Store:    r.store,
			Prompt:   node,
			Response: result.Parsed,
			Config:   cfg,
			Context:  postaction.Context{UserID: userID},
		})
	}

	result.Assignments = postaction.ProcessAssignments(ctx, r.store, node.RowID, result.Parsed, assignmentConfig(node.PostActionConfig))

	slog.Info("node run complete",
		"node", nodeID,
		"model", resp.Model,
		"tokens", resp.TotalTokens,
		"action", node.PostActionID,
	)
	return result, nil
}

// renderPrompts substitutes {{variable}} references from the node's scoped
// variables. Unknown references are left in place for the model to see.
func (r *Runner) renderPrompts(ctx context.Context, node *models.PromptNode) (string, string, error) {
	vars, err := r.store.ListVariables(ctx, node.RowID)
	if err != nil {
		return "", "", fmt.Errorf("load variables for %s: %w", node.RowID, err)
	}
	values := make(map[string]string, len(vars))
	for _, v := range vars {
		values[v.VariableName] = v.VariableValue
	}

	sub := func(text string) string {
		return variableRefPattern.ReplaceAllStringFunc(text, func(m string) string {
			name := variableRefPattern.FindStringSubmatch(m)[1]
			if val, ok := values[name]; ok {
				return val
			}
			return m
		})
	}
	return sub(node.InputAdminPrompt), sub(node.InputUserPrompt), nil
}

// chatRequest maps the node's gated settings onto a provider request. A
// parameter only transfers when its flag is on and the value is present.
func (r *Runner) chatRequest(node *models.PromptNode, adminPrompt, userPrompt string) llm.ChatRequest {
	model := r.defaultModel
	if node.ModelOn && node.Model != "" {
		model = node.Model
	}

	req := llm.ChatRequest{Model: model}
	if adminPrompt != "" {
		req.Messages = append(req.Messages, llm.Message{Role: "system", Content: adminPrompt})
	}
	req.Messages = append(req.Messages, llm.Message{Role: "user", Content: userPrompt})

	if node.TemperatureOn {
		req.Temperature = node.Temperature
	}
	if node.MaxTokensOn {
		req.MaxTokens = node.MaxTokens
	}
	if node.MaxCompletionTokensOn {
		req.MaxCompletionTokens = node.MaxCompletionTokens
	}
	if node.TopPOn {
		req.TopP = node.TopP
	}
	if node.FrequencyPenaltyOn {
		req.FrequencyPenalty = node.FrequencyPenalty
	}
	if node.PresencePenaltyOn {
		req.PresencePenalty = node.PresencePenalty
	}
	if node.Stop != nil && *node.Stop != "" {
		req.Stop = []string{*node.Stop}
	}
	req.Seed = node.Seed
	if node.ReasoningEffort != nil {
		req.ReasoningEffort = *node.ReasoningEffort
	}
	if node.ResponseFormatOn && wantsJSON(node.ResponseFormat) {
		req.JSONResponse = true
	}
	return req
}

func wantsJSON(format json.RawMessage) bool {
	var f struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(format, &f); err != nil {
		return false
	}
	return strings.HasPrefix(f.Type, "json")
}

// ParseResponseJSON extracts a JSON document from raw model output. Models
// routinely wrap JSON in markdown fences; strip them before validating. Text
// that still isn't JSON is wrapped as a JSON string so downstream path
// resolution sees a well-formed document.
func ParseResponseJSON(content string) json.RawMessage {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	wrapped, err := json.Marshal(content)
	if err != nil {
		return nil
	}
	return wrapped
}

// decodeActionConfig tolerates a missing or malformed config block; executors
// apply their own defaults over an empty map.
func decodeActionConfig(raw json.RawMessage) postaction.Config {
	cfg := postaction.Config{}
	if len(raw) == 0 {
		return cfg
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("malformed post_action_config, using defaults", "error", err)
		return postaction.Config{}
	}
	return cfg
}

// assignmentConfig reads the variable_assignments block out of the node's
// action config.
func assignmentConfig(raw json.RawMessage) postaction.AssignmentConfig {
	var wrapper struct {
		VariableAssignments postaction.AssignmentConfig `json:"variable_assignments"`
	}
	if len(raw) == 0 {
		return postaction.AssignmentConfig{}
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return postaction.AssignmentConfig{}
	}
	return wrapper.VariableAssignments
}

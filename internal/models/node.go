package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Node types.
const (
	NodeTypeStandard = "standard"
	NodeTypeAction   = "action"
)

// PromptNode is one entry in the hierarchical prompt tree. Siblings sharing a
// ParentRowID are ordered by lexicographic comparison of PositionLex.
type PromptNode struct {
	RowID       uuid.UUID  `json:"row_id" db:"row_id"`
	ParentRowID *uuid.UUID `json:"parent_row_id,omitempty" db:"parent_row_id"`
	PositionLex string     `json:"position_lex" db:"position_lex"`

	PromptName       string `json:"prompt_name" db:"prompt_name"`
	InputAdminPrompt string `json:"input_admin_prompt,omitempty" db:"input_admin_prompt"`
	InputUserPrompt  string `json:"input_user_prompt,omitempty" db:"input_user_prompt"`

	ModelSettings

	IsAssistant         bool   `json:"is_assistant" db:"is_assistant"`
	ThreadMode          string `json:"thread_mode,omitempty" db:"thread_mode"`
	ChildThreadStrategy string `json:"child_thread_strategy,omitempty" db:"child_thread_strategy"`
	WebSearchOn         bool   `json:"web_search_on" db:"web_search_on"`
	ConfluenceEnabled   bool   `json:"confluence_enabled" db:"confluence_enabled"`

	NodeType           string          `json:"node_type" db:"node_type"`
	OwnerID            *uuid.UUID      `json:"owner_id,omitempty" db:"owner_id"`
	IsDeleted          bool            `json:"is_deleted" db:"is_deleted"`
	ExtractedVariables json.RawMessage `json:"extracted_variables,omitempty" db:"extracted_variables"`
	LibraryPromptID    *uuid.UUID      `json:"library_prompt_id,omitempty" db:"library_prompt_id"`

	PostActionID     string          `json:"post_action_id,omitempty" db:"post_action_id"`
	PostActionConfig json.RawMessage `json:"post_action_config,omitempty" db:"post_action_config"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ModelSettings is the per-node model parameter block. Each "_on" flag gates
// whether the value overrides the system default or is inherited.
type ModelSettings struct {
	Model   string `json:"model,omitempty" db:"model"`
	ModelOn bool   `json:"model_on" db:"model_on"`

	Temperature   *float64 `json:"temperature,omitempty" db:"temperature"`
	TemperatureOn bool     `json:"temperature_on" db:"temperature_on"`

	MaxTokens   *int `json:"max_tokens,omitempty" db:"max_tokens"`
	MaxTokensOn bool `json:"max_tokens_on" db:"max_tokens_on"`

	MaxCompletionTokens   *int `json:"max_completion_tokens,omitempty" db:"max_completion_tokens"`
	MaxCompletionTokensOn bool `json:"max_completion_tokens_on" db:"max_completion_tokens_on"`

	TopP   *float64 `json:"top_p,omitempty" db:"top_p"`
	TopPOn bool     `json:"top_p_on" db:"top_p_on"`

	FrequencyPenalty   *float64 `json:"frequency_penalty,omitempty" db:"frequency_penalty"`
	FrequencyPenaltyOn bool     `json:"frequency_penalty_on" db:"frequency_penalty_on"`

	PresencePenalty   *float64 `json:"presence_penalty,omitempty" db:"presence_penalty"`
	PresencePenaltyOn bool     `json:"presence_penalty_on" db:"presence_penalty_on"`

	ResponseFormat   json.RawMessage `json:"response_format,omitempty" db:"response_format"`
	ResponseFormatOn bool            `json:"response_format_on" db:"response_format_on"`

	Stop            *string `json:"stop,omitempty" db:"stop"`
	N               *int    `json:"n,omitempty" db:"n"`
	Seed            *int    `json:"seed,omitempty" db:"seed"`
	ToolChoice      *string `json:"tool_choice,omitempty" db:"tool_choice"`
	ReasoningEffort *string `json:"reasoning_effort,omitempty" db:"reasoning_effort"`
}

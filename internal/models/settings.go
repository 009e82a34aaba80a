package models

import "time"

// GlobalDefaults is the organization-wide fallback content and model choice.
type GlobalDefaults struct {
	DefAdminPrompt    string    `json:"def_admin_prompt" db:"def_admin_prompt"`
	DefaultUserPrompt string    `json:"default_user_prompt" db:"default_user_prompt"`
	DefaultModel      string    `json:"default_model" db:"default_model"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// ModelDefaults is the per-model row of parameter defaults. Each value only
// applies when its "_on" flag is set for that model.
type ModelDefaults struct {
	Model string `json:"model" db:"model"`

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
}

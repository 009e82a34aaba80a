package models

import (
	"time"

	"github.com/google/uuid"
)

// Template is a serialized prompt subtree plus variable definitions, used as a
// stamp for future trees. Structure must never embed a live cross-reference to
// a specific source prompt.
type Template struct {
	ID                  uuid.UUID            `json:"id" db:"id"`
	Name                string               `json:"name" db:"name"`
	Description         string               `json:"description,omitempty" db:"description"`
	Category            string               `json:"category,omitempty" db:"category"`
	IsPrivate           bool                 `json:"is_private" db:"is_private"`
	Version             int                  `json:"version" db:"version"`
	Structure           TemplateStructure    `json:"structure" db:"structure"`
	VariableDefinitions []VariableDefinition `json:"variable_definitions" db:"variable_definitions"`
	OwnerID             *uuid.UUID           `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt           time.Time            `json:"created_at" db:"created_at"`
}

// TemplateStructure mirrors one node of the serialized subtree.
type TemplateStructure struct {
	Name             string              `json:"name"`
	InputAdminPrompt string              `json:"input_admin_prompt,omitempty"`
	InputUserPrompt  string              `json:"input_user_prompt,omitempty"`
	Settings         ModelSettings       `json:"settings"`
	IsAssistant      bool                `json:"is_assistant"`
	NodeType         string              `json:"node_type"`
	Children         []TemplateStructure `json:"children,omitempty"`
}

// VariableDefinition describes one {{variable}} a template expects.
type VariableDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// PromptVariable is scoped to one prompt node; names are unique per prompt.
type PromptVariable struct {
	ID            uuid.UUID `json:"id" db:"id"`
	PromptRowID   uuid.UUID `json:"prompt_row_id" db:"prompt_row_id"`
	VariableName  string    `json:"variable_name" db:"variable_name"`
	VariableValue string    `json:"variable_value" db:"variable_value"`
	Description   string    `json:"description,omitempty" db:"description"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionRun is one telemetry row per post-action dispatch.
type ActionRun struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	NodeRowID    uuid.UUID       `json:"node_row_id" db:"node_row_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	ActionID     string          `json:"action_id" db:"action_id"`
	Success      bool            `json:"success" db:"success"`
	CreatedCount int             `json:"created_count" db:"created_count"`
	Error        string          `json:"error,omitempty" db:"error"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	DurationMs   int64           `json:"duration_ms" db:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Package store is the table-store capability consumed by the post-action
// engine: point lookups, filtered ordered lists, insert-with-return, and
// updates by key. Postgres backs production; Memory backs tests.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/promptforge/backend/internal/models"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

type Store interface {
	// GetNode returns a node by row id, including soft-deleted rows.
	GetNode(ctx context.Context, rowID uuid.UUID) (*models.PromptNode, error)
	// ListChildren returns the live nodes at parent (nil = top level),
	// ordered by position_lex ascending.
	ListChildren(ctx context.Context, parent *uuid.UUID) ([]models.PromptNode, error)
	// LastPositionLex returns the highest position key among live nodes at
	// parent, or "" when the level is empty.
	LastPositionLex(ctx context.Context, parent *uuid.UUID) (string, error)
	// InsertNode persists a new node and returns the stored row.
	InsertNode(ctx context.Context, n *models.PromptNode) (*models.PromptNode, error)
	// UpdateNode rewrites a node's mutable fields.
	UpdateNode(ctx context.Context, n *models.PromptNode) error
	// UpdateNodePosition moves a node to a new position key.
	UpdateNodePosition(ctx context.Context, rowID uuid.UUID, positionLex string) error
	// SoftDeleteNode marks a node deleted. Rows are never physically removed.
	SoftDeleteNode(ctx context.Context, rowID uuid.UUID) error

	InsertTemplate(ctx context.Context, t *models.Template) (*models.Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]models.Template, error)

	// ListVariables returns all variables scoped to one prompt node.
	ListVariables(ctx context.Context, promptRowID uuid.UUID) ([]models.PromptVariable, error)
	InsertVariable(ctx context.Context, v *models.PromptVariable) error
	UpdateVariableValue(ctx context.Context, id uuid.UUID, value string) error

	GetGlobalDefaults(ctx context.Context) (*models.GlobalDefaults, error)
	// GetModelDefaults returns (nil, nil) when the model has no defaults row.
	GetModelDefaults(ctx context.Context, model string) (*models.ModelDefaults, error)
}

// Package postaction turns a parsed AI JSON response plus a declarative
// config into new prompt-tree nodes, templates, or variable assignments.
// Executors are pure with respect to process state: all side effects go
// through the store, and a dispatch never escapes as a panic or unhandled
// error.
package postaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/position"
	"github.com/promptforge/backend/internal/store"
)

// Registered action ids.
const (
	ActionChildrenText     = "create_children_text"
	ActionChildrenJSON     = "create_children_json"
	ActionChildrenSections = "create_children_sections"
	ActionCreateTemplate   = "create_template"
)

// Placement selects where newly created nodes attach in the tree.
const (
	PlacementChildren       = "children"
	PlacementSiblings       = "siblings"
	PlacementTopLevel       = "top_level"
	PlacementSpecificPrompt = "specific_prompt"
)

// Config is the plain key/value record embedded in a node's
// post_action_config. Its shape depends on the selected action id.
type Config map[string]any

func (c Config) Str(key, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// PathStr reads a path-valued option that older configs stored as a
// single-element array. Both shapes are tolerated.
func (c Config) PathStr(key, def string) string {
	switch v := c[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok && s != "" {
				return s
			}
		}
	case []string:
		if len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return def
}

// StrSlice reads an option that may be a single string or a string array.
func (c Config) StrSlice(key string) []string {
	switch v := c[key].(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []string:
		return v
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Context carries invocation metadata from the orchestration layer.
type Context struct {
	UserID *uuid.UUID
}

// Input is the shared executor contract.
type Input struct {
	Store    store.Store
	Prompt   *models.PromptNode // the triggering node
	Response json.RawMessage    // already-parsed AI output
	Config   Config
	Context  Context
}

// ItemError records one per-item failure inside an otherwise-successful batch.
type ItemError struct {
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// Result is the envelope the UI layer depends on. It is the only contract
// crossing the dispatch boundary.
type Result struct {
	Success      bool                `json:"success"`
	Action       string              `json:"action,omitempty"`
	CreatedCount int                 `json:"created_count"`
	Children     []models.PromptNode `json:"children,omitempty"`
	Template     *models.Template    `json:"template,omitempty"`
	Processed    int                 `json:"processed,omitempty"`
	Errors       []ItemError         `json:"errors,omitempty"`
	Message      string              `json:"message,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Executor implements one post-action's side effect.
type Executor interface {
	Name() string
	Execute(ctx context.Context, in Input) (*Result, error)
}

// Recorder receives one telemetry event per dispatch.
type Recorder interface {
	RecordRun(ctx context.Context, run models.ActionRun)
}

// Registry routes an action id to its executor. It is open: new action types
// register at runtime without touching dispatch.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	recorder  Recorder
}

// NewRegistry returns a registry with the built-in executors registered.
// recorder may be nil.
func NewRegistry(recorder Recorder) *Registry {
	r := &Registry{
		executors: make(map[string]Executor),
		recorder:  recorder,
	}
	r.Register(&ChildrenFromCount{})
	r.Register(&ChildrenFromJSON{})
	r.Register(&ChildrenFromSections{})
	r.Register(&TemplateFromSubtree{})
	return r
}

func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Name()] = e
}

// Actions returns the registered action ids.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for name := range r.executors {
		out = append(out, name)
	}
	return out
}

// Execute dispatches to the executor for actionID, wrapping the call in the
// success/failure envelope. Internal errors and panics never escape.
func (r *Registry) Execute(ctx context.Context, actionID string, in Input) (result *Result) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("post-action panic", "action", actionID, "panic", rec)
			result = &Result{Success: false, Action: actionID, Error: fmt.Sprintf("internal error: %v", rec)}
		}
		r.record(ctx, actionID, in, result, time.Since(start))
	}()

	r.mu.RLock()
	exec, ok := r.executors[actionID]
	r.mu.RUnlock()
	if !ok {
		return &Result{Success: false, Error: fmt.Sprintf("Unknown action type: %s", actionID)}
	}

	res, err := exec.Execute(ctx, in)
	if err != nil {
		slog.Error("post-action failed", "action", actionID, "node", in.Prompt.RowID, "error", err)
		out := &Result{Success: false, Action: actionID, Error: err.Error()}
		if res != nil {
			// Partial creation is expected, not an atomicity violation:
			// surface what was persisted before the failure.
			out.CreatedCount = res.CreatedCount
			out.Children = res.Children
		}
		return out
	}

	res.Success = true
	res.Action = actionID
	return res
}

func (r *Registry) record(ctx context.Context, actionID string, in Input, res *Result, elapsed time.Duration) {
	if r.recorder == nil || res == nil {
		return
	}
	var nodeID uuid.UUID
	if in.Prompt != nil {
		nodeID = in.Prompt.RowID
	}
	run := models.ActionRun{
		NodeRowID:    nodeID,
		UserID:       in.Context.UserID,
		ActionID:     actionID,
		Success:      res.Success,
		CreatedCount: res.CreatedCount,
		Error:        res.Error,
		DurationMs:   elapsed.Milliseconds(),
	}
	r.recorder.RecordRun(ctx, run)
}

// resolveTargetParent applies the placement table: children (default) attach
// under the triggering prompt, siblings beside it, top_level at the root, and
// specific_prompt under config.target_prompt_id with the triggering prompt as
// fallback.
func resolveTargetParent(in Input) *uuid.UUID {
	switch in.Config.Str("placement", PlacementChildren) {
	case PlacementSiblings:
		return in.Prompt.ParentRowID
	case PlacementTopLevel:
		return nil
	case PlacementSpecificPrompt:
		if raw := in.Config.Str("target_prompt_id", ""); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				return &id
			}
		}
		id := in.Prompt.RowID
		return &id
	default:
		id := in.Prompt.RowID
		return &id
	}
}

// loadParentNode fetches the node the new children will attach under, reusing
// the triggering prompt when it is the target. Returns nil for top level.
func loadParentNode(ctx context.Context, in Input, parentID *uuid.UUID) (*models.PromptNode, error) {
	if parentID == nil {
		return nil, nil
	}
	if *parentID == in.Prompt.RowID {
		return in.Prompt, nil
	}
	parent, err := in.Store.GetNode(ctx, *parentID)
	if err != nil {
		return nil, fmt.Errorf("load target parent %s: %w", parentID, err)
	}
	return parent, nil
}

// childSpec is one planned child computed by an executor before any insert.
type childSpec struct {
	Name        string
	AdminPrompt string
	UserPrompt  string
	Extracted   json.RawMessage
}

// insertChildren persists the planned children sequentially under parentID,
// threading the position key forward so N children get N strictly ordered
// keys in a single pass. Inserts are deliberately sequential: concurrent
// inserts would race on the last known position. A failure aborts the loop
// and returns the children already persisted alongside the error; there is no
// rollback.
func insertChildren(ctx context.Context, in Input, parentID *uuid.UUID, nodeType string, specs []childSpec) ([]models.PromptNode, error) {
	parent, err := loadParentNode(ctx, in, parentID)
	if err != nil {
		return nil, err
	}

	resolved, err := ResolveChildSettings(ctx, in.Store, parent, nodeType, in.Prompt)
	if err != nil {
		return nil, err
	}

	lastPos, err := in.Store.LastPositionLex(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("probe last position: %w", err)
	}

	var created []models.PromptNode
	for i, spec := range specs {
		pos := position.AtEnd(lastPos)

		node := &models.PromptNode{
			ParentRowID:         parentID,
			PositionLex:         pos,
			PromptName:          spec.Name,
			InputAdminPrompt:    spec.AdminPrompt,
			InputUserPrompt:     spec.UserPrompt,
			ModelSettings:       resolved.Settings,
			IsAssistant:         true,
			ThreadMode:          resolved.ThreadMode,
			ChildThreadStrategy: resolved.ChildThreadStrategy,
			WebSearchOn:         resolved.WebSearchOn,
			ConfluenceEnabled:   resolved.ConfluenceEnabled,
			NodeType:            nodeType,
			OwnerID:             in.Context.UserID,
			ExtractedVariables:  spec.Extracted,
		}

		stored, err := in.Store.InsertNode(ctx, node)
		if err != nil {
			return created, fmt.Errorf("insert child %d of %d: %w", i+1, len(specs), err)
		}
		created = append(created, *stored)
		lastPos = pos
	}
	return created, nil
}

// childNodeType reads the configured type for new children.
func childNodeType(c Config) string {
	t := c.Str("child_node_type", models.NodeTypeStandard)
	if t != models.NodeTypeAction {
		return models.NodeTypeStandard
	}
	return models.NodeTypeAction
}

// libraryAdminPrompt returns the admin prompt to seed children with: the
// referenced library prompt's content when copy_library_prompt_id is set,
// else the global default admin prompt.
func libraryAdminPrompt(ctx context.Context, in Input, fallback string) string {
	raw := in.Config.Str("copy_library_prompt_id", "")
	if raw == "" {
		return fallback
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fallback
	}
	lib, err := in.Store.GetNode(ctx, id)
	if err != nil {
		slog.Warn("library prompt unavailable, using default admin prompt", "library_prompt_id", id, "error", err)
		return fallback
	}
	return lib.InputAdminPrompt
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptforge/backend/internal/auth"
	"github.com/promptforge/backend/internal/config"
	"github.com/promptforge/backend/internal/models"
	"github.com/promptforge/backend/internal/orchestrator"
	"github.com/promptforge/backend/internal/position"
	"github.com/promptforge/backend/internal/queue"
	"github.com/promptforge/backend/internal/store"
)

type NodeHandler struct {
	store   store.Store
	runner  *orchestrator.Runner
	queue   *queue.Client
	actions config.ActionsConfig
}

func NewNodeHandler(st store.Store, runner *orchestrator.Runner, qc *queue.Client, actions config.ActionsConfig) *NodeHandler {
	return &NodeHandler{store: st, runner: runner, queue: qc, actions: actions}
}

func (h *NodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var node models.PromptNode
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if node.PromptName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt_name required"})
		return
	}
	if node.NodeType == "" {
		node.NodeType = models.NodeTypeStandard
	}
	node.OwnerID = auth.UserIDFromContext(r.Context())

	// New nodes append after the last sibling.
	last, err := h.store.LastPositionLex(r.Context(), node.ParentRowID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	node.PositionLex = position.AtEnd(last)

	stored, err := h.store.InsertNode(r.Context(), &node)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	var parent *uuid.UUID
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid parent_id"})
			return
		}
		parent = &id
	}

	nodes, err := h.store.ListChildren(r.Context(), parent)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes, "count": len(nodes)})
}

func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid node ID"})
		return
	}

	node, err := h.store.GetNode(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *NodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid node ID"})
		return
	}

	var node models.PromptNode
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	node.RowID = id

	if err := h.store.UpdateNode(r.Context(), &node); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *NodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid node ID"})
		return
	}

	if err := h.store.SoftDeleteNode(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type moveRequest struct {
	PrevID *uuid.UUID `json:"prev_id,omitempty"`
	NextID *uuid.UUID `json:"next_id,omitempty"`
}

// Move rekeys one node between two siblings. Only the moved node's key
// changes; neighbors are read, never written.
func (h *NodeHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid node ID"})
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	prevKey, err := h.positionOf(r, req.PrevID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prev node not found"})
		return
	}
	nextKey, err := h.positionOf(r, req.NextID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "next node not found"})
		return
	}

	var pos string
	switch {
	case prevKey == "" && nextKey == "":
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prev_id or next_id required"})
		return
	case prevKey == "":
		pos = position.AtStart(nextKey)
	case nextKey == "":
		pos = position.AtEnd(prevKey)
	default:
		pos = position.Between(prevKey, nextKey)
	}

	if err := h.store.UpdateNodePosition(r.Context(), id, pos); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"position_lex": pos})
}

func (h *NodeHandler) positionOf(r *http.Request, id *uuid.UUID) (string, error) {
	if id == nil {
		return "", nil
	}
	node, err := h.store.GetNode(r.Context(), *id)
	if err != nil {
		return "", err
	}
	return node.PositionLex, nil
}

// Run executes the node's prompt and post-actions, inline or via the queue
// depending on configuration.
func (h *NodeHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid node ID"})
		return
	}
	userID := auth.UserIDFromContext(r.Context())

	if h.actions.Async && h.queue != nil {
		payload := queue.NodeRunPayload{NodeID: id.String()}
		if userID != nil {
			payload.UserID = userID.String()
		}
		if err := h.queue.EnqueueNodeRun(payload); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	result, err := h.runner.Run(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

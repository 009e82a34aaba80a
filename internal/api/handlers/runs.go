package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/promptforge/backend/internal/audit"
	"github.com/promptforge/backend/internal/postaction"
)

type RunHandler struct {
	audit    *audit.Service
	registry *postaction.Registry
}

func NewRunHandler(auditSvc *audit.Service, registry *postaction.Registry) *RunHandler {
	return &RunHandler{audit: auditSvc, registry: registry}
}

// Actions lists the registered post-action ids.
func (h *RunHandler) Actions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": h.registry.Actions()})
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	q := audit.RunQuery{ActionID: r.URL.Query().Get("action_id")}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	if raw := r.URL.Query().Get("success"); raw != "" {
		ok := raw == "true"
		q.Success = &ok
	}
	if raw := r.URL.Query().Get("start"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.StartDate = &t
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.EndDate = &t
		}
	}

	runs, err := h.audit.ListRuns(r.Context(), q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (h *RunHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var start, end *time.Time
	if raw := r.URL.Query().Get("start"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			start = &t
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			end = &t
		}
	}

	summary, err := h.audit.GetRunSummary(r.Context(), start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptforge/backend/internal/orchestrator"
	"github.com/promptforge/backend/internal/queue"
)

type NodeRunWorker struct {
	runner *orchestrator.Runner
}

func NewNodeRunWorker(runner *orchestrator.Runner) *NodeRunWorker {
	return &NodeRunWorker{runner: runner}
}

func (w *NodeRunWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.NodeRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	nodeID, err := uuid.Parse(payload.NodeID)
	if err != nil {
		return fmt.Errorf("parse node ID: %w", err)
	}

	var userID *uuid.UUID
	if payload.UserID != "" {
		id, err := uuid.Parse(payload.UserID)
		if err != nil {
			return fmt.Errorf("parse user ID: %w", err)
		}
		userID = &id
	}

	slog.Info("running queued node", "node_id", nodeID)

	result, err := w.runner.Run(ctx, nodeID, userID)
	if err != nil {
		return fmt.Errorf("run node %s: %w", nodeID, err)
	}

	if result.Action != nil && !result.Action.Success {
		slog.Warn("queued node action failed", "node_id", nodeID, "error", result.Action.Error)
	}
	slog.Info("queued node complete", "node_id", nodeID, "tokens", result.Chat.TotalTokens)
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/promptforge/backend/internal/audit"
	"github.com/promptforge/backend/internal/config"
	"github.com/promptforge/backend/internal/database"
	"github.com/promptforge/backend/internal/llm"
	"github.com/promptforge/backend/internal/orchestrator"
	"github.com/promptforge/backend/internal/postaction"
	"github.com/promptforge/backend/internal/queue"
	"github.com/promptforge/backend/internal/queue/workers"
	"github.com/promptforge/backend/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	auditSvc := audit.NewService(db)
	registry := postaction.NewRegistry(auditSvc)
	st := store.NewPostgres(db)
	gateway := llm.NewGateway(cfg.LLM)
	runner := orchestrator.NewRunner(st, gateway, registry, cfg.LLM.DefaultModel)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Actions.QueueConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registryMux := queue.NewHandlersRegistry()
	nodeRunWorker := workers.NewNodeRunWorker(runner)
	registryMux.Register(queue.TypeNodeRun, asynq.HandlerFunc(nodeRunWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Actions.QueueConcurrency)
	if err := srv.Run(registryMux.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptforge/backend/internal/api/handlers"
	"github.com/promptforge/backend/internal/api/middleware"
	"github.com/promptforge/backend/internal/audit"
	"github.com/promptforge/backend/internal/auth"
	"github.com/promptforge/backend/internal/cache"
	"github.com/promptforge/backend/internal/config"
	"github.com/promptforge/backend/internal/llm"
	"github.com/promptforge/backend/internal/orchestrator"
	"github.com/promptforge/backend/internal/postaction"
	"github.com/promptforge/backend/internal/queue"
	"github.com/promptforge/backend/internal/store"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	auditSvc := audit.NewService(rt.db)
	registry := postaction.NewRegistry(auditSvc)

	var st store.Store = store.NewPostgres(rt.db)
	if rt.redis != nil {
		ttl := time.Duration(rt.cfg.Actions.DefaultsTTLSeconds) * time.Second
		st = store.NewCached(st, cache.NewCache(rt.redis), ttl)
	}

	runner := orchestrator.NewRunner(st, rt.llmGW, registry, rt.cfg.LLM.DefaultModel)
	queueClient := queue.NewClient(rt.cfg.Redis)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		// Prompt tree routes
		nodeH := handlers.NewNodeHandler(st, runner, queueClient, rt.cfg.Actions)
		varH := handlers.NewVariableHandler(st)
		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeH.Create)
			r.Get("/", nodeH.List)
			r.Get("/{id}", nodeH.Get)
			r.Put("/{id}", nodeH.Update)
			r.Delete("/{id}", nodeH.Delete)
			r.Post("/{id}/move", nodeH.Move)
			r.Post("/{id}/run", nodeH.Run)
			r.Get("/{id}/variables", varH.List)
			r.Post("/{id}/variables", varH.Create)
		})
		r.Put("/variables/{id}", varH.UpdateValue)

		// Template routes
		tplH := handlers.NewTemplateHandler(st)
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", tplH.List)
			r.Get("/{id}", tplH.Get)
		})

		// Action telemetry routes
		runH := handlers.NewRunHandler(auditSvc, registry)
		r.Get("/actions", runH.Actions)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/runs", runH.List)
			r.Get("/runs/summary", runH.Summary)
		})
	})

	return r
}

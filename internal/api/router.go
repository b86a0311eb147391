package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docconvert/internal/api/handlers"
	"github.com/nikhilbhutani/docconvert/internal/api/middleware"
	"github.com/nikhilbhutani/docconvert/internal/auth"
	"github.com/nikhilbhutani/docconvert/internal/config"
	"github.com/nikhilbhutani/docconvert/internal/tasks"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	tasks *tasks.Service
	queue handlers.QueueStats
	auth  *auth.Middleware
}

// NewRouter wires the HTTP surface. db and q may be nil.
func NewRouter(cfg *config.Config, svc *tasks.Service, q handlers.QueueStats, db *pgxpool.Pool, rdb *redis.Client) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		tasks: svc,
		queue: q,
		auth:  auth.NewMiddleware(cfg.Auth.APIKeyHeader, cfg.Auth.APIToken, cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins, rt.cfg.Auth.APIKeyHeader))

	// Health checks and metrics (no auth, no rate limit)
	health := handlers.NewHealthHandler(rt.db, rt.redis, rt.queue, rt.cfg.Version)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Get("/health/live", health.Healthz)
	r.Get("/health/ready", health.Readyz)
	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())

	rl := middleware.NewRateLimiter(rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateLimitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rl.Limit)
		r.Use(rt.auth.Authenticate)

		convH := handlers.NewConversionHandler(rt.tasks, rt.cfg.Server.MaxUploadBytes, rt.cfg.Conversion.DefaultOptions())
		r.Post("/convert", convH.Convert)
		r.Post("/convert/upload", convH.Upload)
		r.Post("/convert/batch", convH.Batch)

		taskH := handlers.NewTaskHandler(rt.tasks)
		r.Get("/tasks/{taskID}", taskH.Get)
		r.Delete("/tasks/{taskID}", taskH.Delete)
		r.Get("/batches/{batchID}", taskH.Batch)

		r.Get("/stats", health.Stats)
	})

	return r
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docconvert/internal/queue"
)

type QueueStats interface {
	Stats(ctx context.Context) (*queue.Stats, error)
	WorkersActive(ctx context.Context) (int, error)
}

type HealthHandler struct {
	db      *pgxpool.Pool
	redis   *redis.Client
	queue   QueueStats
	version string
	started time.Time
}

// NewHealthHandler builds the liveness, readiness and stats handlers. db and q may be nil.
func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client, q QueueStats, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, queue: q, version: version, started: time.Now()}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

type healthResponse struct {
	Status         string  `json:"status"`
	Version        string  `json:"version"`
	RedisConnected bool    `json:"redis_connected"`
	WorkersActive  int     `json:"workers_active"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Health always answers 200; degraded dependencies show up in the body.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.started).Seconds(),
	}

	if h.redis != nil {
		resp.RedisConnected = h.redis.Ping(r.Context()).Err() == nil
	}
	if !resp.RedisConnected {
		resp.Status = "degraded"
	}

	if h.queue != nil && resp.RedisConnected {
		n, err := h.queue.WorkersActive(r.Context())
		if err != nil {
			slog.Warn("failed to count workers", "error", err)
		}
		resp.WorkersActive = n
	}

	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	*queue.Stats
	AverageProcessingTimeMS float64 `json:"average_processing_time_ms"`
}

func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "queue statistics unavailable")
		return
	}
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "queue not found")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: stats})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

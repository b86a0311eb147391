// Package app holds the startup wiring shared by the API and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docconvert/internal/config"
	"github.com/nikhilbhutani/docconvert/internal/database"
	"github.com/nikhilbhutani/docconvert/internal/store"
	"github.com/nikhilbhutani/docconvert/internal/vectorstore"
	"github.com/nikhilbhutani/docconvert/internal/webhook"
)

// LoadConfig reads an optional .env file, loads the environment and runs
// the startup checks. Warnings are logged; violations are returned.
func LoadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	SetupLogger(cfg.LogLevel)

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		slog.Warn("security warning", "message", w, "env", cfg.Env)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func SetupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// Deps are the long-lived connections and stores shared by a process.
type Deps struct {
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Store      store.Store
	Purger     store.Purger
	Chunks     vectorstore.ChunkSink
	Deliveries webhook.DeliveryRecorder
}

// Open connects to Redis and, when configured, Postgres. Postgres is
// optional unless it backs the task store.
func Open(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{}

	db, err := database.NewPool(ctx, cfg.Database)
	switch {
	case err == nil:
		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		d.DB = db
		d.Chunks = vectorstore.NewPgVectorStore(db)
		d.Deliveries = webhook.NewPgDeliveryLog(db)
	case cfg.Store.Backend == "postgres":
		return nil, fmt.Errorf("connect database: %w", err)
	case errors.Is(err, database.ErrNotConfigured):
		slog.Info("database not configured, chunk vectors and webhook audit disabled")
	default:
		slog.Warn("database unavailable, running without DB", "error", err)
	}

	d.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable at startup", "addr", cfg.Redis.Addr, "error", err)
	}

	switch cfg.Store.Backend {
	case "postgres":
		pg := store.NewPostgresStore(d.DB)
		d.Store = pg
		d.Purger = pg
	default:
		d.Store = store.NewRedisStore(d.Redis, cfg.Store.ResultTTL)
	}
	return d, nil
}

func (d *Deps) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

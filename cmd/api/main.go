package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/api"
	"github.com/nikhilbhutani/docconvert/internal/app"
	"github.com/nikhilbhutani/docconvert/internal/queue"
	"github.com/nikhilbhutani/docconvert/internal/storage"
	"github.com/nikhilbhutani/docconvert/internal/store"
	"github.com/nikhilbhutani/docconvert/internal/tasks"
)

func main() {
	app.SetupLogger("info")

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	deps, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	uploads, err := storage.New(cfg.Storage)
	if err != nil {
		slog.Error("failed to init upload storage", "error", err)
		os.Exit(1)
	}

	queueClient := queue.NewClient(cfg.Redis, cfg.Queue, cfg.Worker)
	defer queueClient.Close()
	inspector := queue.NewInspector(queue.RedisOpt(cfg.Redis), cfg.Queue.Name)
	defer inspector.Close()

	correlator := store.NewCorrelator(deps.Store, inspector)
	svc := tasks.NewService(deps.Store, correlator, queueClient, uploads, deps.Chunks, cfg.Conversion.MaxBatchSize)

	router := api.NewRouter(cfg, svc, inspector, deps.DB, deps.Redis)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "env", cfg.Env, "version", cfg.Version, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

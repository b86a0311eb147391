package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/docconvert/internal/app"
	"github.com/nikhilbhutani/docconvert/internal/cache"
	"github.com/nikhilbhutani/docconvert/internal/conversion"
	"github.com/nikhilbhutani/docconvert/internal/document"
	"github.com/nikhilbhutani/docconvert/internal/embedding"
	"github.com/nikhilbhutani/docconvert/internal/queue"
	"github.com/nikhilbhutani/docconvert/internal/queue/workers"
	"github.com/nikhilbhutani/docconvert/internal/storage"
	"github.com/nikhilbhutani/docconvert/internal/webhook"
)

// purgeSchedule runs the expiry sweep for stores without native TTLs.
const purgeSchedule = "@hourly"

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

	// Embeddings are optional; tasks that request them fail validation
	// when no provider is configured.
	var embedder conversion.Embedder
	if provider, err := embedding.NewProvider(cfg.Embedding); err != nil {
		slog.Warn("embedding provider unavailable", "provider", cfg.Embedding.Provider, "error", err)
	} else {
		if cfg.Embedding.CacheTTL > 0 {
			provider = embedding.NewCachedProvider(provider, cache.NewCache(deps.Redis, "docling:embedding:"), cfg.Embedding.CacheTTL)
		}
		svc := embedding.NewService(provider, cfg.Embedding.Model, cfg.Embedding.Dimensions).
			WithBatchSize(cfg.Embedding.BatchSize)
		if err := svc.Validate(); err != nil {
			slog.Warn("embeddings disabled", "model", cfg.Embedding.Model, "error", err)
		} else {
			embedder = svc
		}
	}

	ocr := document.NewOCRService(cfg.Conversion.OCRLanguage)
	if !ocr.IsAvailable() {
		slog.Warn("tesseract not found, OCR disabled")
	}

	executor := conversion.NewExecutor(
		document.NewLocalConverter(ocr),
		document.NewDownloader(cfg.Conversion.DownloadTimeout, cfg.Conversion.TempDir, cfg.Conversion.MaxDownloadBytes),
		uploads,
		embedder,
		cfg.Conversion.TempDir,
	)

	policy := conversion.RetryPolicy{
		MaxAttempts: cfg.Worker.MaxAttempts,
		Delay:       cfg.Worker.RetryDelay,
		HardLimit:   cfg.Worker.HardTimeLimit,
		SoftLimit:   cfg.Worker.SoftTimeLimit,
	}
	notifier := webhook.NewNotifier(cfg.Webhook.Timeout, cfg.Webhook.SigningSecret, deps.Deliveries)
	recycler := workers.NewRecycler(cfg.Worker.MaxTasks)

	redisOpt := queue.RedisOpt(cfg.Redis)
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Worker.Concurrency,
		Queues:          map[string]int{cfg.Queue.Name: 1},
		RetryDelayFunc:  workers.RetryDelay(policy),
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		Logger:          newAsynqLogger(),
	})

	registry := queue.NewHandlersRegistry()
	registry.Use(workers.LogMiddleware)

	convWorker := workers.NewConversionWorker(executor, deps.Store, deps.Chunks, notifier, policy, recycler)
	registry.Register(queue.TypeDocumentConvert, asynq.HandlerFunc(convWorker.ProcessTask))

	var scheduler *asynq.Scheduler
	if deps.Purger != nil {
		registry.Register(queue.TypeStorePurge, asynq.HandlerFunc(workers.NewPurgeWorker(deps.Purger).ProcessTask))

		purgeTask, err := queue.NewPurgeTask(cfg.Store.ResultTTL)
		if err != nil {
			slog.Error("failed to build purge task", "error", err)
			os.Exit(1)
		}
		scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: newAsynqLogger()})
		if _, err := scheduler.Register(purgeSchedule, purgeTask, asynq.Queue(cfg.Queue.Name)); err != nil {
			slog.Error("failed to register purge schedule", "error", err)
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			slog.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	metricsSrv := startMetricsServer(cfg.Worker.MetricsAddr)

	slog.Info("starting worker",
		"queue", cfg.Queue.Name,
		"task_types", registry.Types(),
		"concurrency", cfg.Worker.Concurrency,
		"max_tasks", cfg.Worker.MaxTasks,
		"max_attempts", cfg.Worker.MaxAttempts,
	)
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down", "signal", sig.String())
	case <-recycler.Done():
		slog.Info("recycling worker", "tasks", recycler.Count())
	}

	// Stop fetching first so in-flight tasks drain without new ones starting.
	srv.Stop()
	srv.Shutdown()
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if metricsSrv != nil {
		metricsSrv.Close()
	}
	slog.Info("worker stopped")
}

func startMetricsServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("starting worker metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

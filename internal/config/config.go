package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

type Config struct {
	Env        string
	Version    string
	LogLevel   string
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Store      StoreConfig
	Queue      QueueConfig
	Worker     WorkerConfig
	Conversion ConversionConfig
	Embedding  EmbeddingConfig
	Webhook    WebhookConfig
	Storage    StorageConfig
	Auth       AuthConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	MaxUploadBytes int64
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StoreConfig struct {
	Backend   string // "redis" or "postgres"
	ResultTTL time.Duration
}

type QueueConfig struct {
	Name string
}

type WorkerConfig struct {
	Concurrency     int
	MaxTasks        int // recycle after this many terminal tasks, 0 disables
	MaxAttempts     int
	RetryDelay      time.Duration
	HardTimeLimit   time.Duration
	SoftTimeLimit   time.Duration
	ShutdownTimeout time.Duration
	MetricsAddr     string
}

type ConversionConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	MaxBatchSize     int
	DownloadTimeout  time.Duration
	MaxDownloadBytes int64
	TempDir          string
	OCRLanguage      string
}

type EmbeddingConfig struct {
	Provider      string // "openai" or "ollama"
	Model         string
	Dimensions    int
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaURL     string
	Timeout       time.Duration
	CacheTTL      time.Duration // 0 disables the Redis vector cache
	BatchSize     int           // texts per provider call, 0 sends all chunks in one call
}

type WebhookConfig struct {
	Timeout       time.Duration
	SigningSecret string
}

type StorageConfig struct {
	Backend     string // "local" or "supabase"
	LocalDir    string
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type AuthConfig struct {
	APIKeyHeader string
	APIToken     string
	JWTSecret    string
}

func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Version:  getEnv("SERVICE_VERSION", "1.0.0"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           intVar("SERVER_PORT", 8080),
			MaxUploadBytes: int64(intVar("MAX_UPLOAD_MB", 100)) << 20,
			CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
			RateLimitRPS:   floatVar("RATE_LIMIT_RPS", 20),
			RateLimitBurst: intVar("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       intVar("DB_MAX_CONNS", 20),
			MinConns:       intVar("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Store: StoreConfig{
			Backend:   getEnv("STORE_BACKEND", "redis"),
			ResultTTL: durVar("RESULT_TTL", 7*24*time.Hour),
		},
		Queue: QueueConfig{
			Name: getEnv("QUEUE_NAME", "docling"),
		},
		Worker: WorkerConfig{
			Concurrency:     intVar("WORKER_CONCURRENCY", 2),
			MaxTasks:        intVar("WORKER_MAX_TASKS", 50),
			MaxAttempts:     intVar("TASK_MAX_ATTEMPTS", 3),
			RetryDelay:      durVar("TASK_RETRY_DELAY", 60*time.Second),
			HardTimeLimit:   durVar("WORKER_HARD_TIME_LIMIT", 900*time.Second),
			SoftTimeLimit:   durVar("WORKER_SOFT_TIME_LIMIT", 540*time.Second),
			ShutdownTimeout: durVar("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MetricsAddr:     getEnv("WORKER_METRICS_ADDR", ""),
		},
		Conversion: ConversionConfig{
			ChunkSize:        intVar("DEFAULT_CHUNK_SIZE", 512),
			ChunkOverlap:     intVar("DEFAULT_CHUNK_OVERLAP", 50),
			MaxBatchSize:     intVar("MAX_BATCH_SIZE", 100),
			DownloadTimeout:  durVar("DOWNLOAD_TIMEOUT", 60*time.Second),
			MaxDownloadBytes: int64(intVar("MAX_DOWNLOAD_MB", 200)) << 20,
			TempDir:          getEnv("TEMP_DIR", os.TempDir()),
			OCRLanguage:      getEnv("OCR_LANGUAGE", "eng"),
		},
		Embedding: EmbeddingConfig{
			Provider:      getEnv("EMBEDDING_PROVIDER", "openai"),
			Model:         getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions:    intVar("EMBEDDING_DIMENSIONS", 0),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
			Timeout:       durVar("EMBEDDING_TIMEOUT", 5*time.Minute),
			CacheTTL:      durVar("EMBEDDING_CACHE_TTL", 24*time.Hour),
			BatchSize:     intVar("EMBEDDING_BATCH_SIZE", 0),
		},
		Webhook: WebhookConfig{
			Timeout:       durVar("WEBHOOK_TIMEOUT", 30*time.Second),
			SigningSecret: getEnv("WEBHOOK_SIGNING_SECRET", ""),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "local"),
			LocalDir:    getEnv("UPLOAD_DIR", "/tmp/docling-uploads"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "documents"),
		},
		Auth: AuthConfig{
			APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
			APIToken:     getEnv("DOCLING_API_TOKEN", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// DefaultOptions returns the options applied to requests that omit them.
func (c ConversionConfig) DefaultOptions() models.ConversionOptions {
	opts := models.DefaultConversionOptions()
	if c.ChunkSize > 0 {
		opts.ChunkSize = c.ChunkSize
	}
	if c.ChunkOverlap > 0 {
		opts.ChunkOverlap = c.ChunkOverlap
	}
	return opts
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

const minTokenLength = 16

var weakTokens = map[string]bool{
	"":              true,
	"changeme":      true,
	"dev-token-123": true,
	"test":          true,
	"admin":         true,
	"password":      true,
}

// WeakToken reports whether an API token is missing, well-known or too short.
func WeakToken(token string) bool {
	return weakTokens[strings.ToLower(token)] || len(token) < minTokenLength
}

// Validate returns an error for settings the service cannot start with.
// Weak credentials are fatal only in production; elsewhere the caller
// gets them back as warnings.
func (c *Config) Validate() (warnings []string, err error) {
	var problems []string

	switch c.Store.Backend {
	case "redis":
	case "postgres":
		if c.Database.URL == "" {
			problems = append(problems, "STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.Storage.Backend {
	case "local":
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			problems = append(problems, "STORAGE_BACKEND=supabase requires SUPABASE_URL and SUPABASE_SERVICE_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	if c.Worker.Concurrency < 1 {
		problems = append(problems, "WORKER_CONCURRENCY must be at least 1")
	}
	if c.Worker.MaxAttempts < 1 {
		problems = append(problems, "TASK_MAX_ATTEMPTS must be at least 1")
	}
	if err := c.Conversion.DefaultOptions().Validate(); err != nil {
		problems = append(problems, fmt.Sprintf("default conversion options: %v", err))
	}
	if c.Embedding.BatchSize < 0 {
		problems = append(problems, "EMBEDDING_BATCH_SIZE must not be negative")
	}
	if c.Worker.SoftTimeLimit > c.Worker.HardTimeLimit {
		problems = append(problems, "WORKER_SOFT_TIME_LIMIT must not exceed WORKER_HARD_TIME_LIMIT")
	}

	if WeakToken(c.Auth.APIToken) {
		if c.IsProduction() {
			problems = append(problems, fmt.Sprintf("DOCLING_API_TOKEN is weak or missing; production requires at least %d characters", minTokenLength))
		} else {
			warnings = append(warnings, "API token is weak, acceptable for development only")
		}
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		if c.IsProduction() {
			problems = append(problems, "JWT_SECRET must be at least 32 characters")
		} else {
			warnings = append(warnings, "JWT secret is short, acceptable for development only")
		}
	}

	if len(problems) > 0 {
		return warnings, fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return warnings, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"gopkg.in/yaml.v3"

	"github.com/jy4618272/fine-uploader/internal/scaling"
)

type Config struct {
	API      APIConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Webhook  WebhookConfig
	Trace    TraceConfig
}

type APIConfig struct {
	Addr                string
	PresignTTL          time.Duration
	RateLimitCapacity   int
	RateLimitWindow     time.Duration
	RateLimitUserHeader string
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency    int
	MaxActiveJobs  int
	MetricsAddr    string
	LocalOutputDir string
	ScalingFile    string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DatabaseConfig struct {
	DSN string
}

type WebhookConfig struct {
	SigningSecret string
	Timeout       time.Duration
	MaxAttempts   int
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:                env("UPLOADER_API_ADDR", ":8080"),
			PresignTTL:          envDuration("UPLOADER_PRESIGN_TTL", 15*time.Minute),
			RateLimitCapacity:   envInt("UPLOADER_RATE_LIMIT_CAPACITY", 60),
			RateLimitWindow:     envDuration("UPLOADER_RATE_LIMIT_WINDOW", time.Minute),
			RateLimitUserHeader: env("UPLOADER_RATE_LIMIT_USER_HEADER", "X-User-ID"),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("UPLOADER_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:    envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs:  envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			MetricsAddr:    env("WORKER_METRICS_ADDR", ":9090"),
			LocalOutputDir: env("WORKER_LOCAL_OUTPUT_DIR", "./.uploader-output"),
			ScalingFile:    env("UPLOADER_SCALING_FILE", ""),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "uploader-jobs"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Webhook: WebhookConfig{
			SigningSecret: env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:       envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:   envInt("WEBHOOK_MAX_ATTEMPTS", 3),
		},
		Trace: TraceConfig{
			Exporter:     env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("TRACE_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("TRACE_OTLP_INSECURE", false),
		},
	}
}

// ScalingConfig is the YAML document describing what to derive from each
// reference image.
type ScalingConfig struct {
	scaling.Options `yaml:",inline"`
	Capabilities    scaling.Capabilities `yaml:"capabilities"`
}

// DefaultScaling is used when no scaling file is configured.
func DefaultScaling() ScalingConfig {
	return ScalingConfig{
		Options: scaling.Options{
			SendOriginal:   true,
			Orient:         scaling.OrientAuto,
			DefaultQuality: 80,
			FailureText:    "Failed to scale",
			Sizes: []scaling.SizeSpec{
				{MaxSize: 160, Name: "small"},
				{MaxSize: 640, Name: "medium"},
				{MaxSize: 1280, Name: "large"},
			},
		},
		Capabilities: scaling.Capabilities{ImagePreview: true},
	}
}

// LoadScaling reads the scaling document at path, or returns the defaults
// when path is empty.
func LoadScaling(path string) (ScalingConfig, error) {
	if path == "" {
		return DefaultScaling(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ScalingConfig{}, fmt.Errorf("read scaling config %s: %w", path, err)
	}

	cfg := DefaultScaling()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ScalingConfig{}, fmt.Errorf("parse scaling config %s: %w", path, err)
	}

	if err := validateScaling(cfg); err != nil {
		return ScalingConfig{}, fmt.Errorf("scaling config %s: %w", path, err)
	}
	return cfg, nil
}

func validateScaling(cfg ScalingConfig) error {
	for i, size := range cfg.Sizes {
		if size.MaxSize <= 0 {
			return fmt.Errorf("sizes[%d].max_size must be positive", i)
		}
		if size.Name == "" {
			return fmt.Errorf("sizes[%d].name is required", i)
		}
	}
	if cfg.DefaultQuality < 0 || cfg.DefaultQuality > 100 {
		return fmt.Errorf("default_quality must be within 0-100")
	}
	switch cfg.Orient {
	case scaling.OrientAuto, scaling.OrientOff, "":
	default:
		return fmt.Errorf("orient must be auto or off, got %q", cfg.Orient)
	}
	return nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jy4618272/fine-uploader/internal/api"
	"github.com/jy4618272/fine-uploader/internal/config"
	"github.com/jy4618272/fine-uploader/internal/queue"
	"github.com/jy4618272/fine-uploader/internal/ratelimit"
	"github.com/jy4618272/fine-uploader/internal/storage"
	"github.com/jy4618272/fine-uploader/internal/store"
	"github.com/jy4618272/fine-uploader/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "uploader-api",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	uploadStore, closeStore := buildUploadStore(ctx, cfg, logger)
	defer closeStore()

	storageClient := buildStorage(ctx, cfg, logger)
	rateLimiter := buildRateLimiter(cfg, logger)

	appCfg := api.Config{
		Logger:              logger,
		Queue:               queueClient,
		Store:               uploadStore,
		PresignTTL:          cfg.API.PresignTTL,
		RateLimiter:         rateLimiter,
		RateLimitUserHeader: cfg.API.RateLimitUserHeader,
	}
	if storageClient != nil {
		appCfg.Storage = storageClient
	}
	app := api.NewServer(appCfg)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

func buildUploadStore(ctx context.Context, cfg config.Config, logger *log.Logger) (store.UploadStore, func()) {
	if cfg.Database.DSN == "" {
		logger.Printf("no POSTGRES_DSN configured, using in-memory upload store")
		return store.NewMemoryUploadStore(), func() {}
	}

	pg, err := store.NewPostgresUploadStore(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("postgres store setup failed: %v", err)
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Printf("postgres close error: %v", err)
		}
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *log.Logger) *storage.Client {
	client, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Printf("object storage unavailable, presigned uploads disabled: %v", err)
		return nil
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ensureCtx); err != nil {
		logger.Printf("object storage unreachable, presigned uploads disabled: %v", err)
		return nil
	}
	return client
}

func buildRateLimiter(cfg config.Config, logger *log.Logger) api.RateLimiter {
	if cfg.API.RateLimitCapacity <= 0 {
		logger.Printf("rate limiting disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})

	limiter, err := ratelimit.NewRedisTokenBucket(rdb, cfg.API.RateLimitCapacity, cfg.API.RateLimitWindow, "")
	if err != nil {
		logger.Printf("rate limiter setup failed, rate limiting disabled: %v", err)
		return nil
	}
	return limiter
}

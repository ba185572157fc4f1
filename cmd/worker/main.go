package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/jy4618272/fine-uploader/internal/config"
	"github.com/jy4618272/fine-uploader/internal/exifx"
	"github.com/jy4618272/fine-uploader/internal/render"
	"github.com/jy4618272/fine-uploader/internal/storage"
	"github.com/jy4618272/fine-uploader/internal/store"
	"github.com/jy4618272/fine-uploader/internal/telemetry"
	"github.com/jy4618272/fine-uploader/internal/webhook"
	"github.com/jy4618272/fine-uploader/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "uploader-worker",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	scalingCfg, err := config.LoadScaling(cfg.Worker.ScalingFile)
	if err != nil {
		logger.Fatalf("scaling config failed: %v", err)
	}

	if err := render.Startup(); err != nil {
		logger.Fatalf("render engine startup failed: %v", err)
	}
	defer render.Shutdown()

	renderer, err := render.New()
	if err != nil {
		logger.Fatalf("render engine setup failed: %v", err)
	}

	uploadStore, closeStore := buildUploadStore(ctx, cfg, logger)
	defer closeStore()

	workerCfg := worker.Config{
		Logger:         logger,
		Store:          uploadStore,
		Scaling:        scalingCfg,
		Renderer:       renderer,
		LocalOutputDir: cfg.Worker.LocalOutputDir,
		MaxActiveJobs:  cfg.Worker.MaxActiveJobs,
	}
	if scalingCfg.IncludeExif {
		workerCfg.Exif = exifx.Restorer{}
	}
	if storageClient := buildStorage(ctx, cfg, logger); storageClient != nil {
		workerCfg.Storage = storageClient
	}
	if cfg.Webhook.SigningSecret != "" {
		workerCfg.Webhooks = webhook.NewClient(webhook.Config{
			SigningSecret: cfg.Webhook.SigningSecret,
			Timeout:       cfg.Webhook.Timeout,
			MaxAttempts:   cfg.Webhook.MaxAttempts,
		})
	}

	srv, err := worker.NewServer(workerCfg)
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	go serveMetrics(cfg.Worker.MetricsAddr, srv.MetricsHandler(), logger)

	logger.Printf(
		"starting worker concurrency=%d max_active_jobs=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	asynqServer := asynq.NewServer(
		cfg.Queue.RedisClientOpt(),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				cfg.Queue.Name: 1,
			},
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
			}),
		},
	)
	if err := asynqServer.Run(srv.Mux()); err != nil {
		logger.Fatalf("worker failed: %v", err)
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
		logger.Printf("object storage unavailable, using local output only: %v", err)
		return nil
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ensureCtx); err != nil {
		logger.Printf("object storage unreachable, using local output only: %v", err)
		return nil
	}
	return client
}

func serveMetrics(addr string, handler http.Handler, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	logger.Printf("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("metrics server failed: %v", err)
	}
}

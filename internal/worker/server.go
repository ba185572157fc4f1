// Package worker consumes scale tasks, drives the variant pipeline for
// each reference image and emits the resolved variants to the configured
// sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jy4618272/fine-uploader/internal/config"
	"github.com/jy4618272/fine-uploader/internal/domain"
	"github.com/jy4618272/fine-uploader/internal/id"
	"github.com/jy4618272/fine-uploader/internal/queue"
	"github.com/jy4618272/fine-uploader/internal/scaling"
	"github.com/jy4618272/fine-uploader/internal/store"
)

const (
	EventCompleted = "upload.completed"
	EventPartial   = "upload.partial"
	EventFailed    = "upload.failed"
)

type objectStorage interface {
	ReadReference(ctx context.Context, objectKey string) ([]byte, string, error)
	WriteVariant(ctx context.Context, objectKey string, data []byte, contentType string) error
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

// Config wires the worker. Storage and Webhooks are optional; without
// storage the worker only handles local_file sources and writes variants
// under LocalOutputDir.
type Config struct {
	Logger         *log.Logger
	Store          store.UploadStore
	Storage        objectStorage
	Webhooks       webhookSender
	Scaling        config.ScalingConfig
	Renderer       scaling.Renderer
	Exif           scaling.ExifRestorer
	LocalOutputDir string
	MaxActiveJobs  int
}

type Server struct {
	logger         *log.Logger
	uploadStore    store.UploadStore
	storage        objectStorage
	webhooks       webhookSender
	builder        *scaling.Builder
	localOutputDir string
	sem            chan struct{}
	metrics        *metrics
	tracer         trace.Tracer
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("upload store is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if cfg.Storage == nil && strings.TrimSpace(cfg.LocalOutputDir) == "" {
		return nil, errors.New("either object storage or a local output directory is required")
	}

	builder, err := scaling.NewBuilder(scaling.BuilderConfig{
		Options:  cfg.Scaling.Options,
		Caps:     cfg.Scaling.Capabilities,
		Renderer: cfg.Renderer,
		Exif:     cfg.Exif,
		NewID:    id.New,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build variant builder: %w", err)
	}

	maxActive := cfg.MaxActiveJobs
	if maxActive < 1 {
		maxActive = 1
	}

	return &Server{
		logger:         cfg.Logger,
		uploadStore:    cfg.Store,
		storage:        cfg.Storage,
		webhooks:       cfg.Webhooks,
		builder:        builder,
		localOutputDir: cfg.LocalOutputDir,
		sem:            make(chan struct{}, maxActive),
		metrics:        newMetrics(),
		tracer:         otel.Tracer("uploader/worker"),
	}, nil
}

// Mux returns the asynq handler mux with the scale task registered.
func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeScaleUpload, s.HandleScaleUpload)
	return mux
}

// MetricsHandler exposes the worker's prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.handler()
}

func (s *Server) HandleScaleUpload(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseScaleUploadPayload(task)
	if err != nil {
		// A payload that never parses will never parse; drop it.
		s.metrics.jobsTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	ctx, span := s.tracer.Start(ctx, "worker.scale_upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("upload.id", payload.UploadID),
		attribute.String("upload.source_type", payload.SourceType),
	)

	s.metrics.activeJobs.Inc()
	defer s.metrics.activeJobs.Dec()
	start := time.Now()

	status, err := s.process(ctx, payload)
	s.metrics.jobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.jobsTotal.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		s.logger.Printf("scale upload %s failed: %v", payload.UploadID, err)
		return err
	}

	s.metrics.jobsTotal.WithLabelValues(status).Inc()
	span.SetAttributes(attribute.String("upload.status", status))
	return nil
}

// process runs the pipeline for one payload and returns the terminal
// status. An error return means the task should be retried; variant
// failures are not errors, they land in the result records.
func (s *Server) process(ctx context.Context, payload queue.ScaleUploadPayload) (string, error) {
	if _, err := s.uploadStore.UpdateStatus(ctx, payload.UploadID, domain.UploadStatusProcessing); err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return "", fmt.Errorf("upload %s not found: %w", payload.UploadID, asynq.SkipRetry)
		}
		return "", fmt.Errorf("mark processing: %w", err)
	}

	ref, err := s.fetchReference(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("fetch reference: %w", err)
	}

	variants := s.builder.BuildVariants(ref)
	results := make([]domain.VariantResult, 0, len(variants))
	for _, variant := range variants {
		results = append(results, s.resolveVariant(ctx, payload.UploadID, variant))
	}

	status := domain.StatusForResults(results)
	if err := s.uploadStore.SetResults(ctx, payload.UploadID, status, results); err != nil {
		return "", fmt.Errorf("record results: %w", err)
	}

	s.notify(ctx, payload, status, results)
	return status, nil
}

func (s *Server) fetchReference(ctx context.Context, payload queue.ScaleUploadPayload) (scaling.Reference, error) {
	var (
		data     []byte
		declared string
		err      error
	)

	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		data, err = os.ReadFile(payload.ObjectKey)
		if err != nil {
			return scaling.Reference{}, fmt.Errorf("read local reference %s: %w", payload.ObjectKey, err)
		}
	default:
		if s.storage == nil {
			return scaling.Reference{}, fmt.Errorf("object storage is not configured for source_type=%s", payload.SourceType)
		}
		data, declared, err = s.storage.ReadReference(ctx, payload.ObjectKey)
		if err != nil {
			return scaling.Reference{}, err
		}
	}

	// Magic bytes win over whatever content type the uploader declared.
	mime := scaling.SniffMIME(data)
	if mime == "" {
		mime = declared
	}

	name := payload.Name
	if name == "" {
		name = filepath.Base(payload.ObjectKey)
	}

	return scaling.Reference{
		UUID: payload.UploadID,
		Name: name,
		Blob: scaling.Blob{Data: data, MIME: mime},
	}, nil
}

// resolveVariant evaluates one producer and emits the blob on success.
// Failures are isolated to the variant's own result record.
func (s *Server) resolveVariant(ctx context.Context, uploadID string, variant scaling.Variant) domain.VariantResult {
	result := domain.VariantResult{
		UUID: variant.UUID,
		Name: variant.Name,
	}

	blob, err := variant.Producer.Produce(ctx)
	if err != nil {
		s.metrics.variantsTotal.WithLabelValues("failed").Inc()
		result.Error = err.Error()
		return result
	}

	objectKey, err := s.emit(ctx, uploadID, variant.Name, blob)
	if err != nil {
		s.metrics.variantsTotal.WithLabelValues("failed").Inc()
		s.logger.Printf("emit variant %s of upload %s failed: %v", variant.Name, uploadID, err)
		result.Error = fmt.Sprintf("failed to store variant: %v", err)
		return result
	}

	s.metrics.variantsTotal.WithLabelValues("succeeded").Inc()
	result.MIME = blob.MIME
	result.ObjectKey = objectKey
	result.Bytes = len(blob.Data)
	result.OK = true
	return result
}

func (s *Server) emit(ctx context.Context, uploadID, name string, blob scaling.Blob) (string, error) {
	key := fmt.Sprintf("outputs/%s/%s", sanitizePathToken(uploadID), sanitizePathToken(name))

	if s.storage != nil {
		if err := s.storage.WriteVariant(ctx, key, blob.Data, blob.MIME); err != nil {
			return "", err
		}
		return key, nil
	}

	path := filepath.Join(s.localOutputDir, sanitizePathToken(uploadID), sanitizePathToken(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
		return "", fmt.Errorf("write variant file: %w", err)
	}
	return path, nil
}

func (s *Server) notify(ctx context.Context, payload queue.ScaleUploadPayload, status string, results []domain.VariantResult) {
	if s.webhooks == nil || strings.TrimSpace(payload.WebhookURL) == "" {
		return
	}

	event := EventCompleted
	switch status {
	case domain.UploadStatusFailed:
		event = EventFailed
	case domain.UploadStatusPartial:
		event = EventPartial
	}

	body := map[string]any{
		"upload_id": payload.UploadID,
		"status":    status,
		"variants":  results,
	}
	if err := s.webhooks.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery for upload %s failed: %v", payload.UploadID, err)
	}
}

// sanitizePathToken keeps object keys and output paths free of separator
// and traversal characters that a caller-supplied name could smuggle in.
func sanitizePathToken(token string) string {
	token = strings.TrimSpace(token)
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		"\x00", "",
	)
	cleaned := replacer.Replace(token)
	if cleaned == "" {
		return "unnamed"
	}
	return cleaned
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jy4618272/fine-uploader/internal/domain"
	"github.com/jy4618272/fine-uploader/internal/id"
	"github.com/jy4618272/fine-uploader/internal/queue"
	"github.com/jy4618272/fine-uploader/internal/store"
)

type Server struct {
	logger              *log.Logger
	queueClient         queueEnqueuer
	uploadStore         store.UploadStore
	storage             objectStorage
	presignTTL          time.Duration
	rateLimiter         RateLimiter
	rateLimitUserHeader string
	metrics             *metrics
	tracer              trace.Tracer
	mux                 *http.ServeMux
	handler             http.Handler
}

type queueEnqueuer interface {
	EnqueueScaleUpload(ctx context.Context, payload queue.ScaleUploadPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedReferencePutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

// Config wires the API server. Storage and RateLimiter are optional;
// without storage, s3_presigned uploads are rejected at request time.
type Config struct {
	Logger              *log.Logger
	Queue               queueEnqueuer
	Store               store.UploadStore
	Storage             objectStorage
	PresignTTL          time.Duration
	RateLimiter         RateLimiter
	RateLimitUserHeader string
}

func NewServer(cfg Config) *Server {
	presignTTL := cfg.PresignTTL
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}

	storage := cfg.Storage
	if storage == nil {
		storage = unavailableObjectStorage{}
	}

	userHeader := cfg.RateLimitUserHeader
	if userHeader == "" {
		userHeader = "X-User-ID"
	}

	s := &Server{
		logger:              cfg.Logger,
		queueClient:         cfg.Queue,
		uploadStore:         cfg.Store,
		storage:             storage,
		presignTTL:          presignTTL,
		rateLimiter:         cfg.RateLimiter,
		rateLimitUserHeader: userHeader,
		metrics:             newMetrics(),
		tracer:              otel.Tracer("uploader/api"),
		mux:                 http.NewServeMux(),
	}
	s.routes()
	s.handler = s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignedReferencePutURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/uploads", s.handleCreateUpload)
	s.mux.HandleFunc("POST /v1/uploads/", s.handleStartUpload)
	s.mux.HandleFunc("GET /v1/uploads/", s.handleGetUpload)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	uploadID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	objectKey := strings.TrimSpace(req.ObjectKey)
	name := strings.TrimSpace(req.Name)
	uploadState := "not_required"
	presignedPutURL := ""

	if sourceType == domain.SourceTypeS3Presigned {
		objectKey = fmt.Sprintf("references/%s/source", uploadID)
		url, err := s.storage.PresignedReferencePutURL(r.Context(), objectKey, s.presignTTL)
		if err != nil {
			s.logger.Printf("generate presigned url failed for upload %s: %v", uploadID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL"})
			return
		}
		presignedPutURL = url
		uploadState = "ready"
	}

	if name == "" {
		name = filepath.Base(objectKey)
	}

	upload := domain.Upload{
		ID:         uploadID,
		Status:     domain.UploadStatusCreated,
		SourceType: sourceType,
		Name:       name,
		ObjectKey:  objectKey,
		WebhookURL: req.WebhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.uploadStore.Create(r.Context(), upload); err != nil {
		s.logger.Printf("create upload failed for upload %s: %v", upload.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create upload"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"upload_id": upload.ID,
		"status":    upload.Status,
		"name":      upload.Name,
		"reference": map[string]string{
			"object_key":          upload.ObjectKey,
			"presigned_put_url":   presignedPutURL,
			"presigned_url_state": uploadState,
		},
		"start_url": fmt.Sprintf("/v1/uploads/%s/start", upload.ID),
	})
}

func (s *Server) handleStartUpload(w http.ResponseWriter, r *http.Request) {
	uploadID, err := extractUploadIDFromStartPath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	upload, ok, err := s.uploadStore.Get(r.Context(), uploadID)
	if err != nil {
		s.logger.Printf("fetch upload failed for upload %s: %v", uploadID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load upload"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "upload not found"})
		return
	}

	if err := s.verifyReferenceExists(r.Context(), upload); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	payload := queue.ScaleUploadPayload{
		UploadID:    upload.ID,
		SourceType:  upload.SourceType,
		ObjectKey:   upload.ObjectKey,
		Name:        upload.Name,
		WebhookURL:  upload.WebhookURL,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueScaleUpload(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed for upload %s: %v", upload.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue upload"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.uploadStore.UpdateStatus(r.Context(), upload.ID, domain.UploadStatusQueued); err != nil {
		s.logger.Printf("update status failed for upload %s: %v", upload.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"upload_id":   upload.ID,
		"status":      domain.UploadStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"state":       taskInfo.State.String(),
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	uploadID, err := extractUploadID(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	upload, ok, err := s.uploadStore.Get(r.Context(), uploadID)
	if err != nil {
		s.logger.Printf("fetch upload failed for upload %s: %v", uploadID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load upload"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "upload not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id":   upload.ID,
		"status":      upload.Status,
		"source_type": upload.SourceType,
		"name":        upload.Name,
		"object_key":  upload.ObjectKey,
		"variants":    upload.Variants,
		"created_at":  upload.CreatedAt,
		"updated_at":  upload.UpdatedAt,
	})
}

func (s *Server) verifyReferenceExists(ctx context.Context, upload domain.Upload) error {
	switch upload.SourceType {
	case domain.SourceTypeLocalFile:
		if _, err := os.Stat(upload.ObjectKey); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("reference image is missing: %s", upload.ObjectKey)
			}
			return fmt.Errorf("reference image check failed: %w", err)
		}
		return nil
	default:
		exists, err := s.storage.ObjectExists(ctx, upload.ObjectKey)
		if err != nil {
			return fmt.Errorf("reference image check failed: %w", err)
		}
		if !exists {
			return fmt.Errorf("reference image is missing: %s", upload.ObjectKey)
		}
		return nil
	}
}

func extractUploadIDFromStartPath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/v1/uploads/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "start" {
		return "", errors.New("expected path format /v1/uploads/{id}/start")
	}
	return parts[0], nil
}

func extractUploadID(path string) (string, error) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/v1/uploads/"), "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", errors.New("expected path format /v1/uploads/{id}")
	}
	return trimmed, nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

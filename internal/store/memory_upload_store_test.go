package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jy4618272/fine-uploader/internal/domain"
)

func TestMemoryUploadStoreLifecycle(t *testing.T) {
	s := NewMemoryUploadStore()
	ctx := context.Background()

	upload := domain.Upload{
		ID:         "upload-1",
		Status:     domain.UploadStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		Name:       "photo.jpg",
		ObjectKey:  "/tmp/photo.jpg",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.Create(ctx, upload); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok, err := s.Get(ctx, "upload-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Name != "photo.jpg" {
		t.Fatalf("unexpected name %q", got.Name)
	}

	updated, err := s.UpdateStatus(ctx, "upload-1", domain.UploadStatusQueued)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.UploadStatusQueued {
		t.Fatalf("expected queued, got %s", updated.Status)
	}

	results := []domain.VariantResult{
		{UUID: "v1", Name: "photo (small).jpg", OK: true, Bytes: 123},
		{UUID: "v2", Name: "photo (large).jpg", OK: false, Error: "failed"},
	}
	if err := s.SetResults(ctx, "upload-1", domain.UploadStatusPartial, results); err != nil {
		t.Fatalf("set results: %v", err)
	}

	got, _, _ = s.Get(ctx, "upload-1")
	if got.Status != domain.UploadStatusPartial {
		t.Fatalf("expected partial, got %s", got.Status)
	}
	if len(got.Variants) != 2 || got.Variants[1].Error != "failed" {
		t.Fatalf("unexpected variants: %+v", got.Variants)
	}
}

func TestMemoryUploadStoreMissingUpload(t *testing.T) {
	s := NewMemoryUploadStore()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "nope"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if _, err := s.UpdateStatus(ctx, "nope", domain.UploadStatusQueued); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("expected ErrUploadNotFound, got %v", err)
	}
	if err := s.SetResults(ctx, "nope", domain.UploadStatusFailed, nil); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("expected ErrUploadNotFound, got %v", err)
	}
}

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	UploadStatusCreated    = "created"
	UploadStatusQueued     = "queued"
	UploadStatusProcessing = "processing"
	UploadStatusSucceeded  = "succeeded"
	UploadStatusPartial    = "partial"
	UploadStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

// CreateUploadRequest registers one reference image for variant scaling.
// For local_file sources the object key is the path on the worker host; for
// s3_presigned the key is minted by the API together with an upload URL.
type CreateUploadRequest struct {
	SourceType string `json:"source_type"`
	Name       string `json:"name,omitempty"`
	ObjectKey  string `json:"object_key,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

// Upload is one registered reference image and the state of its variant
// derivation.
type Upload struct {
	ID         string
	Status     string
	SourceType string
	Name       string
	ObjectKey  string
	WebhookURL string
	Variants   []VariantResult
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VariantResult records the outcome of one variant producer: either the
// emitted object or the user-facing failure text. Order matches the
// pipeline's enumeration order.
type VariantResult struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	MIME      string `json:"mime,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`
	Bytes     int    `json:"bytes"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

func (r CreateUploadRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if sourceType == SourceTypeS3Presigned && strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required for source_type=s3_presigned")
	}
	return nil
}

// StatusForResults maps the per-variant outcomes to a terminal job status.
// An empty result list is a success: an unsupported source legitimately
// produces no variants.
func StatusForResults(results []VariantResult) string {
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	switch {
	case failed == 0:
		return UploadStatusSucceeded
	case failed == len(results):
		return UploadStatusFailed
	default:
		return UploadStatusPartial
	}
}

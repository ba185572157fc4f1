package store

import (
	"context"
	"errors"

	"github.com/jy4618272/fine-uploader/internal/domain"
)

var ErrUploadNotFound = errors.New("upload not found")

type UploadStore interface {
	Create(ctx context.Context, upload domain.Upload) error
	Get(ctx context.Context, id string) (domain.Upload, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Upload, error)
	SetResults(ctx context.Context, id, status string, results []domain.VariantResult) error
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jy4618272/fine-uploader/internal/domain"
)

const uploadSchemaSQL = `
CREATE TABLE IF NOT EXISTS uploads (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	source_type TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	variants JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

type PostgresUploadStore struct {
	db *sql.DB
}

func NewPostgresUploadStore(ctx context.Context, dsn string) (*PostgresUploadStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUploadStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresUploadStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, uploadSchemaSQL); err != nil {
		return fmt.Errorf("ensure uploads schema: %w", err)
	}
	return nil
}

func (s *PostgresUploadStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUploadStore) Create(ctx context.Context, upload domain.Upload) error {
	variantsJSON, err := json.Marshal(variantsOrEmpty(upload.Variants))
	if err != nil {
		return fmt.Errorf("marshal upload variants: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO uploads (id, status, source_type, display_name, object_key, webhook_url, variants, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		upload.ID,
		upload.Status,
		upload.SourceType,
		upload.Name,
		upload.ObjectKey,
		upload.WebhookURL,
		variantsJSON,
		upload.CreatedAt,
		upload.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}

	return nil
}

func (s *PostgresUploadStore) Get(ctx context.Context, id string) (domain.Upload, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, status, source_type, display_name, object_key, webhook_url, variants, created_at, updated_at
		 FROM uploads
		 WHERE id = $1`,
		id,
	)

	var (
		upload       domain.Upload
		variantsJSON []byte
	)
	if err := row.Scan(
		&upload.ID,
		&upload.Status,
		&upload.SourceType,
		&upload.Name,
		&upload.ObjectKey,
		&upload.WebhookURL,
		&variantsJSON,
		&upload.CreatedAt,
		&upload.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Upload{}, false, nil
		}
		return domain.Upload{}, false, fmt.Errorf("query upload: %w", err)
	}

	if err := json.Unmarshal(variantsJSON, &upload.Variants); err != nil {
		return domain.Upload{}, false, fmt.Errorf("unmarshal upload variants: %w", err)
	}

	return upload, true, nil
}

func (s *PostgresUploadStore) UpdateStatus(ctx context.Context, id, status string) (domain.Upload, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE uploads
		 SET status = $1, updated_at = $2
		 WHERE id = $3`,
		status,
		now,
		id,
	)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("update upload status: %w", err)
	}

	upload, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Upload{}, err
	}
	if !ok {
		return domain.Upload{}, ErrUploadNotFound
	}

	return upload, nil
}

func (s *PostgresUploadStore) SetResults(ctx context.Context, id, status string, results []domain.VariantResult) error {
	variantsJSON, err := json.Marshal(variantsOrEmpty(results))
	if err != nil {
		return fmt.Errorf("marshal upload variants: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE uploads
		 SET status = $1, variants = $2, updated_at = $3
		 WHERE id = $4`,
		status,
		variantsJSON,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update upload results: %w", err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrUploadNotFound
	}
	return nil
}

// variantsOrEmpty keeps the JSONB column a [] instead of null.
func variantsOrEmpty(results []domain.VariantResult) []domain.VariantResult {
	if results == nil {
		return []domain.VariantResult{}
	}
	return results
}

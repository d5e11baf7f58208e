package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/google/uuid"
)

// UploadsRepository handles the upload envelope record: one row per ingest
// invocation, carrying the aggregate metrics computed at upload time.
type UploadsRepository struct {
	client *Client
	logger *utils.Logger
}

// NewUploadsRepository creates a new uploads repository
func NewUploadsRepository(client *Client) *UploadsRepository {
	return &UploadsRepository{
		client: client,
		logger: utils.NewLogger("uploads_repository"),
	}
}

// Create persists a new upload record and assigns it an id.
func (r *UploadsRepository) Create(ctx context.Context, upload *models.Upload) error {
	if upload.ID == "" {
		upload.ID = uuid.New().String()
	}

	query := `
		INSERT INTO uploads (id, processed, referrals, metrics)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.client.QueryRowContext(ctx, query,
		upload.ID,
		upload.Processed,
		upload.Referrals,
		upload.Metrics,
	).Scan(&upload.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}

	return nil
}

// GetByID returns a single upload record.
func (r *UploadsRepository) GetByID(ctx context.Context, uploadID string) (*models.Upload, error) {
	query := `
		SELECT id, processed, referrals, metrics, created_at
		FROM uploads
		WHERE id = $1`

	upload := &models.Upload{}
	err := r.client.QueryRowContext(ctx, query, uploadID).Scan(
		&upload.ID,
		&upload.Processed,
		&upload.Referrals,
		&upload.Metrics,
		&upload.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	return upload, nil
}

// List returns uploads ordered most-recent-first.
func (r *UploadsRepository) List(ctx context.Context, opts models.ListOptions) ([]*models.Upload, error) {
	query := `
		SELECT id, processed, referrals, metrics, created_at
		FROM uploads
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.client.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*models.Upload
	for rows.Next() {
		upload := &models.Upload{}
		if err := rows.Scan(
			&upload.ID,
			&upload.Processed,
			&upload.Referrals,
			&upload.Metrics,
			&upload.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads: %w", err)
	}

	return uploads, nil
}

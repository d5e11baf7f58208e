package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const upsertReferralSQL = `
	INSERT INTO referrals (referral_id, status, active_appointment, appointments, metrics, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (referral_id) DO UPDATE SET
		status = EXCLUDED.status,
		active_appointment = EXCLUDED.active_appointment,
		appointments = EXCLUDED.appointments,
		metrics = EXCLUDED.metrics,
		updated_at = NOW()`

const insertEventSQL = `
	INSERT INTO referral_events (referral_id, seq, type, payload, upload_id)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (referral_id, seq) DO UPDATE SET
		type = EXCLUDED.type,
		payload = EXCLUDED.payload,
		upload_id = EXCLUDED.upload_id,
		created_at = NOW()`

// BatchWriter persists a reconciled upload using chunked pgx batches, so a
// single upload with many thousands of events never opens one unbounded
// statement.
type BatchWriter struct {
	pool      *pgxpool.Pool
	logger    *utils.Logger
	chunkSize int
	retryCfg  utils.RetryConfig
}

// NewBatchWriter creates a batch writer bounded by cfg.ChunkSize (clamped to
// a sane [1,400] range; 400 is the limit pgx.Batch documents as safe for a
// single round trip).
func NewBatchWriter(pool *pgxpool.Pool, cfg config.BatchWriterConfig) *BatchWriter {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 || chunkSize > 400 {
		chunkSize = 400
	}
	retryAttempts := cfg.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}

	return &BatchWriter{
		pool:      pool,
		logger:    utils.NewLogger("batch_writer"),
		chunkSize: chunkSize,
		retryCfg: utils.RetryConfig{
			MaxAttempts:   retryAttempts,
			InitialDelay:  retryBackoff,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        true,
		},
	}
}

// WriteReferrals upserts every reconciled referral state, chunked at
// chunkSize rows per pgx.Batch.
func (w *BatchWriter) WriteReferrals(ctx context.Context, states map[string]*models.ReferralState) error {
	rows := make([]*models.ReferralState, 0, len(states))
	for _, s := range states {
		rows = append(rows, s)
	}

	for start := 0; start < len(rows); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		if err := w.sendWithRetry(ctx, func() error {
			batch := &pgx.Batch{}
			for _, s := range chunk {
				batch.Queue(upsertReferralSQL, s.ReferralID, s.Status, s.ActiveAppointment, s.Appointments, s.Metrics)
			}
			return w.sendBatch(ctx, batch, len(chunk))
		}); err != nil {
			return err
		}
	}

	return nil
}

// WriteEvents inserts the raw retained events for an upload, chunked at
// chunkSize rows per pgx.Batch.
func (w *BatchWriter) WriteEvents(ctx context.Context, uploadID string, events []models.Event) error {
	for start := 0; start < len(events); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]

		if err := w.sendWithRetry(ctx, func() error {
			batch := &pgx.Batch{}
			for _, e := range chunk {
				payload, err := json.Marshal(e.Payload)
				if err != nil {
					return fmt.Errorf("failed to marshal event payload: %w", err)
				}
				batch.Queue(insertEventSQL, e.ReferralID, e.Seq, e.Type, payload, uploadID)
			}
			return w.sendBatch(ctx, batch, len(chunk))
		}); err != nil {
			return err
		}
	}

	return nil
}

func (w *BatchWriter) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := w.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d failed: %w", i, err)
		}
	}
	return nil
}

// sendWithRetry retries a chunk send on transient failures (connection
// resets, pool exhaustion) before giving up and surfacing an upstream
// failure to the caller.
func (w *BatchWriter) sendWithRetry(ctx context.Context, fn func() error) error {
	result := utils.Retry(ctx, w.retryCfg, func(ctx context.Context, attempt int) error {
		return fn()
	}, utils.IsTemporaryError)

	if result.LastErr != nil {
		w.logger.Error("batch write failed",
			zap.Error(result.LastErr),
			zap.Int("attempts", result.Attempts))
		return utils.NewUpstreamFailureError(fmt.Sprintf("failed to persist batch after %d attempts: %v", result.Attempts, result.LastErr))
	}

	return nil
}

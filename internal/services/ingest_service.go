package services

import (
	"context"
	"fmt"

	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/pubsub"
	"github.com/apahim/cls-backend/internal/reconcile"
	"github.com/apahim/cls-backend/internal/utils"
	"go.uber.org/zap"
)

// IngestService parses an uploaded event batch, reconciles it, and
// persists the result.
type IngestService struct {
	repository  *database.Repository
	batchWriter *database.BatchWriter
	pubsub      *pubsub.Service
	logger      *utils.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(repository *database.Repository, batchWriter *database.BatchWriter, pubsubService *pubsub.Service) *IngestService {
	return &IngestService{
		repository:  repository,
		batchWriter: batchWriter,
		pubsub:      pubsubService,
		logger:      utils.NewLogger("ingest_service"),
	}
}

// Upload parses the given request body, reconciles it against the
// retained events for every referral_id it touches, persists the merged
// result, and records the upload envelope.
func (s *IngestService) Upload(ctx context.Context, body []byte) (*models.UploadResponse, error) {
	events, err := models.ParseBatch(body)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Parsed upload batch", zap.Int("event_count", len(events)))

	referralIDs := make(map[string]struct{}, len(events))
	for _, e := range events {
		referralIDs[e.ReferralID] = struct{}{}
	}

	existing, err := s.loadExistingEvents(ctx, referralIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing events: %w", err)
	}

	combined := append(existing, events...)
	reconciled := reconcile.Reconcile(combined)
	aggregate := reconcile.AggregateMetrics(reconciled)

	upload := &models.Upload{
		Processed: len(events),
		Referrals: len(reconciled),
		Metrics:   aggregate,
	}

	if err := s.repository.Transaction(ctx, func(txRepo *database.Repository) error {
		if err := txRepo.Uploads.Create(ctx, upload); err != nil {
			return fmt.Errorf("failed to record upload: %w", err)
		}
		return nil
	}); err != nil {
		s.logger.Error("Failed to record upload envelope", zap.Error(err))
		return nil, err
	}

	if err := s.batchWriter.WriteEvents(ctx, upload.ID, events); err != nil {
		s.logger.Error("Failed to persist raw events", zap.Error(err))
		return nil, err
	}

	if err := s.batchWriter.WriteReferrals(ctx, reconciled); err != nil {
		s.logger.Error("Failed to persist reconciled referrals", zap.Error(err))
		return nil, err
	}

	if s.pubsub != nil && s.pubsub.IsRunning() {
		publisher := s.pubsub.GetPublisher()
		if err := publisher.PublishUploadCompleted(ctx, upload.ID, upload.Processed, upload.Referrals); err != nil {
			s.logger.Warn("Failed to publish upload completed event",
				zap.String("upload_id", upload.ID),
				zap.Error(err),
			)
			// Don't fail the operation for event publishing failure
		}
	}

	s.logger.Info("Upload reconciled and persisted",
		zap.String("upload_id", upload.ID),
		zap.Int("processed", upload.Processed),
		zap.Int("referrals", upload.Referrals),
	)

	return &models.UploadResponse{
		UploadID:  upload.ID,
		Processed: upload.Processed,
		Referrals: upload.Referrals,
		Metrics:   upload.Metrics,
	}, nil
}

// loadExistingEvents fetches every previously retained event for the
// referral ids this upload touches, so reconciliation sees the full
// history rather than just the new batch.
func (s *IngestService) loadExistingEvents(ctx context.Context, referralIDs map[string]struct{}) ([]models.Event, error) {
	var all []models.Event
	for referralID := range referralIDs {
		events, err := s.repository.Events.GetByReferral(ctx, referralID)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}

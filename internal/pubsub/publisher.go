package pubsub

import (
	"context"
	"fmt"

	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/utils"
	"go.uber.org/zap"
)

// Publisher handles publishing events to Pub/Sub topics
type Publisher struct {
	client *Client
	logger *utils.Logger
	config config.PubSubConfig
}

// NewPublisher creates a new publisher
func NewPublisher(client *Client, cfg config.PubSubConfig) *Publisher {
	return &Publisher{
		client: client,
		logger: utils.NewLogger("pubsub_publisher"),
		config: cfg,
	}
}

// PublishUploadCompleted publishes a lightweight fan-out notification that
// an upload has been reconciled and persisted.
func (p *Publisher) PublishUploadCompleted(ctx context.Context, uploadID string, processed, referrals int) error {
	event := NewUploadCompletedEvent(uploadID, processed, referrals)

	data, err := event.ToJSON()
	if err != nil {
		p.logger.Error("Failed to serialize upload completed event",
			zap.String("upload_id", uploadID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to serialize upload completed event: %w", err)
	}

	err = p.client.Publish(ctx, p.config.UploadEventsTopic, data, event.GetAttributes())
	if err != nil {
		p.logger.Error("Failed to publish upload completed event",
			zap.String("upload_id", uploadID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish upload completed event: %w", err)
	}

	p.logger.Info("Upload completed event published successfully",
		zap.String("upload_id", uploadID),
		zap.Int("processed", processed),
		zap.Int("referrals", referrals),
	)

	return nil
}

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
)

// EventsRepository handles read access to the raw event log, one row per
// (referral_id, seq); re-ingesting an event overwrites its row.
type EventsRepository struct {
	client *Client
	logger *utils.Logger
}

// NewEventsRepository creates a new events repository
func NewEventsRepository(client *Client) *EventsRepository {
	return &EventsRepository{
		client: client,
		logger: utils.NewLogger("events_repository"),
	}
}

// GetByReferral returns every event recorded for a referral_id, ascending by
// seq, across all uploads that have ever touched it.
func (r *EventsRepository) GetByReferral(ctx context.Context, referralID string) ([]models.Event, error) {
	query := `
		SELECT referral_id, seq, type, payload
		FROM referral_events
		WHERE referral_id = $1
		ORDER BY seq ASC`

	rows, err := r.client.QueryContext(ctx, query, referralID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for referral: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var payload []byte
		if err := rows.Scan(&e.ReferralID, &e.Seq, &e.Type, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

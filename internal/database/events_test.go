package database

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
)

func insertEvent(t *testing.T, client *Client, e models.Event, uploadID string) {
	t.Helper()
	payload, err := json.Marshal(e.Payload)
	utils.AssertError(t, err, false, "Should marshal payload")

	_, err = client.ExecContext(context.Background(), `
		INSERT INTO referral_events (referral_id, seq, type, payload, upload_id)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ReferralID, e.Seq, e.Type, payload, uploadID)
	utils.AssertError(t, err, false, "Should insert event")
}

func TestEventsRepository_GetByReferral_OrderedBySeq(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewEventsRepository(client)

	insertEvent(t, client, models.Event{
		ReferralID: "ref-1",
		Seq:        3,
		Type:       models.EventTypeStatusUpdate,
		Payload:    models.EventPayload{Status: models.StatusCompleted},
	}, "upload-1")
	insertEvent(t, client, models.Event{
		ReferralID: "ref-1",
		Seq:        1,
		Type:       models.EventTypeStatusUpdate,
		Payload:    models.EventPayload{Status: models.StatusCreated},
	}, "upload-1")
	insertEvent(t, client, models.Event{
		ReferralID: "ref-1",
		Seq:        2,
		Type:       models.EventTypeAppointmentSet,
		Payload:    models.EventPayload{ApptID: "appt-1"},
	}, "upload-1")
	insertEvent(t, client, models.Event{
		ReferralID: "ref-2",
		Seq:        1,
		Type:       models.EventTypeStatusUpdate,
		Payload:    models.EventPayload{Status: models.StatusSent},
	}, "upload-1")

	events, err := repo.GetByReferral(context.Background(), "ref-1")
	utils.AssertError(t, err, false, "Should get events for referral")
	utils.AssertEqual(t, 3, len(events), "Should have 3 events for ref-1")
	utils.AssertEqual(t, int64(1), events[0].Seq, "First event should be seq 1")
	utils.AssertEqual(t, int64(2), events[1].Seq, "Second event should be seq 2")
	utils.AssertEqual(t, int64(3), events[2].Seq, "Third event should be seq 3")
	utils.AssertEqual(t, "appt-1", events[1].Payload.ApptID, "Payload should round-trip")
}

func TestEventsRepository_GetByReferral_Empty(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewEventsRepository(client)

	events, err := repo.GetByReferral(context.Background(), "no-such-referral")
	utils.AssertError(t, err, false, "Should not error for empty result")
	utils.AssertEqual(t, 0, len(events), "Should return no events")
}

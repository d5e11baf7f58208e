package pubsub

import (
	"testing"

	"github.com/apahim/cls-backend/internal/utils"
)

func TestNewUploadCompletedEvent(t *testing.T) {
	event := NewUploadCompletedEvent("upload-1", 42, 7)

	utils.AssertEqual(t, "upload-1", event.UploadID, "UploadID should match")
	utils.AssertEqual(t, 42, event.Processed, "Processed should match")
	utils.AssertEqual(t, 7, event.Referrals, "Referrals should match")
	utils.AssertEqual(t, EventTypeUploadCompleted, event.Type, "Type should be upload.completed")
	utils.AssertNotEqual(t, "", event.ID, "Should assign an id")
}

func TestUploadCompletedEvent_JSONRoundTrip(t *testing.T) {
	original := NewUploadCompletedEvent("upload-2", 10, 3)

	data, err := original.ToJSON()
	utils.AssertError(t, err, false, "Should serialize event")

	roundTripped, err := UploadCompletedEventFromJSON(data)
	utils.AssertError(t, err, false, "Should deserialize event")
	utils.AssertEqual(t, original.ID, roundTripped.ID, "ID should round-trip")
	utils.AssertEqual(t, original.UploadID, roundTripped.UploadID, "UploadID should round-trip")
	utils.AssertEqual(t, original.Processed, roundTripped.Processed, "Processed should round-trip")
	utils.AssertEqual(t, original.Referrals, roundTripped.Referrals, "Referrals should round-trip")
}

func TestUploadCompletedEvent_GetAttributes(t *testing.T) {
	event := NewUploadCompletedEvent("upload-3", 5, 2)
	attrs := event.GetAttributes()

	utils.AssertEqual(t, EventTypeUploadCompleted, attrs["event_type"], "event_type attribute should match")
	utils.AssertEqual(t, "upload-3", attrs["upload_id"], "upload_id attribute should match")
	utils.AssertEqual(t, "cls-backend", attrs["source"], "source attribute should match")
}

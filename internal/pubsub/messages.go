package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message represents a Pub/Sub message
type Message struct {
	ID          string            `json:"id"`
	Data        []byte            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	PublishTime time.Time         `json:"publish_time"`
}

// MessageHandler defines the interface for handling Pub/Sub messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *Message) error
}

// Event types for Pub/Sub messages
const (
	EventTypeUploadCompleted = "upload.completed"
)

// UploadCompletedEvent is a lightweight fan-out notification that an
// upload has been reconciled and persisted. Consumers that want the full
// reconciled state re-fetch it via GET /referrals rather than carrying it
// in the message.
type UploadCompletedEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	UploadID  string    `json:"upload_id"`
	Processed int       `json:"processed"`
	Referrals int       `json:"referrals"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// NewUploadCompletedEvent creates a new upload-completed event
func NewUploadCompletedEvent(uploadID string, processed, referrals int) *UploadCompletedEvent {
	return &UploadCompletedEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeUploadCompleted,
		UploadID:  uploadID,
		Processed: processed,
		Referrals: referrals,
		Timestamp: time.Now(),
		Source:    "cls-backend",
	}
}

// ToJSON serializes an event to JSON
func (e *UploadCompletedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// UploadCompletedEventFromJSON deserializes an upload-completed event from JSON
func UploadCompletedEventFromJSON(data []byte) (*UploadCompletedEvent, error) {
	var event UploadCompletedEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}

// GetAttributes returns message attributes for the event
func (e *UploadCompletedEvent) GetAttributes() map[string]string {
	return map[string]string{
		"event_type": e.Type,
		"upload_id":  e.UploadID,
		"source":     e.Source,
		"timestamp":  e.Timestamp.Format(time.RFC3339),
	}
}

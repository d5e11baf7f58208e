package models

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates the three kinds of raw event a referral feed carries.
type EventType string

const (
	EventTypeStatusUpdate         EventType = "STATUS_UPDATE"
	EventTypeAppointmentSet       EventType = "APPOINTMENT_SET"
	EventTypeAppointmentCancelled EventType = "APPOINTMENT_CANCELLED"
)

// ReferralStatus enumerates the lifecycle states a referral can be in.
type ReferralStatus string

const (
	StatusCreated      ReferralStatus = "CREATED"
	StatusSent         ReferralStatus = "SENT"
	StatusAcknowledged ReferralStatus = "ACKNOWLEDGED"
	StatusScheduled    ReferralStatus = "SCHEDULED"
	StatusCompleted    ReferralStatus = "COMPLETED"
	StatusCancelled    ReferralStatus = "CANCELLED"
)

// IsTerminal reports whether s is a terminal status: once reached, only
// another terminal status may change it further.
func (s ReferralStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func validStatus(s ReferralStatus) bool {
	switch s {
	case StatusCreated, StatusSent, StatusAcknowledged, StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// EventPayload carries the type-tagged fields of an Event. Which fields are
// meaningful depends on the owning Event's Type; unknown/irrelevant fields
// are preserved but ignored by the reconciliation engine.
type EventPayload struct {
	Status    ReferralStatus `json:"status,omitempty"`
	ApptID    string         `json:"appt_id,omitempty"`
	StartTime string         `json:"start_time,omitempty"`
}

// Event is an immutable record of one mutation to a referral, uniquely
// identified by (ReferralID, Seq).
type Event struct {
	ReferralID string       `json:"referral_id" binding:"required"`
	Seq        int64        `json:"seq"`
	Type       EventType    `json:"type" binding:"required"`
	Payload    EventPayload `json:"payload"`
}

// uploadEnvelope is the `{"events": [...]}` request shape.
type uploadEnvelope struct {
	Events []Event `json:"events"`
}

// ParseBatch parses an upload request body, accepting either a bare JSON
// array of events or an object with an "events" array.
func ParseBatch(body []byte) ([]Event, error) {
	var events []Event

	if err := json.Unmarshal(body, &events); err != nil {
		var envelope uploadEnvelope
		if envErr := json.Unmarshal(body, &envelope); envErr != nil {
			return nil, fmt.Errorf("%w: body is neither a bare event array nor an events envelope", ErrInvalidInput)
		}
		events = envelope.Events
	}

	for i := range events {
		if err := validateEvent(&events[i]); err != nil {
			return nil, err
		}
	}

	return events, nil
}

func validateEvent(e *Event) error {
	if e.ReferralID == "" {
		return fmt.Errorf("%w: referral_id is required", ErrInvalidInput)
	}

	switch e.Type {
	case EventTypeStatusUpdate:
		if e.Payload.Status != "" && !validStatus(e.Payload.Status) {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, e.Payload.Status)
		}
	case EventTypeAppointmentSet:
		if e.Payload.ApptID == "" {
			return fmt.Errorf("%w: appt_id is required for APPOINTMENT_SET", ErrInvalidInput)
		}
	case EventTypeAppointmentCancelled:
		if e.Payload.ApptID == "" {
			return fmt.Errorf("%w: appt_id is required for APPOINTMENT_CANCELLED", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, e.Type)
	}

	return nil
}

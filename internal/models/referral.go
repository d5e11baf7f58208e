package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AppointmentEntry is one entry in a referral's appointment mapping.
// Cancelled distinguishes "appointment was set, then cancelled" from
// "appt_id never seen" (the zero value of the map, i.e. absence).
type AppointmentEntry struct {
	ApptID    string    `json:"appt_id"`
	StartTime time.Time `json:"start_time"`
	Cancelled bool      `json:"cancelled"`
}

// AppointmentsMap is the full per-referral appt_id -> entry mapping,
// persisted as a single JSONB column.
type AppointmentsMap map[string]*AppointmentEntry

// Value implements driver.Valuer for AppointmentsMap.
func (m AppointmentsMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for AppointmentsMap.
func (m *AppointmentsMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into AppointmentsMap", value)
	}
	return json.Unmarshal(bytes, m)
}

// ActiveAppointment references the referral's currently-active appointment.
type ActiveAppointment struct {
	ApptID    string    `json:"appt_id"`
	StartTime time.Time `json:"start_time"`
}

// Value implements driver.Valuer for *ActiveAppointment.
func (a *ActiveAppointment) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for *ActiveAppointment.
func (a *ActiveAppointment) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ActiveAppointment", value)
	}
	return json.Unmarshal(bytes, a)
}

// Metrics holds the per-referral data-quality counters produced by
// reconciliation. All fields are non-negative.
type Metrics struct {
	Duplicates        int `json:"duplicates"`
	SeqGaps           int `json:"seqGaps"`
	TerminalOverrides int `json:"terminalOverrides"`
	Reschedules       int `json:"reschedules"`
	CancelledAppts    int `json:"cancelledAppts"`
}

// QualityScore is the ranking score used by the data-quality summary:
// duplicates + seqGaps + 2*terminalOverrides.
func (m Metrics) QualityScore() int {
	return m.Duplicates + m.SeqGaps + 2*m.TerminalOverrides
}

// Value implements driver.Valuer for Metrics.
func (m Metrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metrics.
func (m *Metrics) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Metrics", value)
	}
	return json.Unmarshal(bytes, m)
}

// ReferralState is the reconciled view of one referral: the durable
// read-model written by an upload and served by the read endpoints.
type ReferralState struct {
	ReferralID        string             `json:"referral_id" db:"referral_id"`
	Status            ReferralStatus     `json:"status" db:"status"`
	ActiveAppointment *ActiveAppointment `json:"active_appointment" db:"active_appointment"`
	Appointments      AppointmentsMap    `json:"appointments" db:"appointments"`
	Metrics           Metrics            `json:"metrics" db:"metrics"`
	Events            []Event            `json:"events,omitempty" db:"-"`
	UpdatedAt         time.Time          `json:"-" db:"updated_at"`
}

// PublicAppointments renders the appointments map for the external wire
// format: a cancelled entry serializes as null rather than exposing its
// pre-cancellation timestamp.
func (r *ReferralState) PublicAppointments() map[string]*AppointmentEntry {
	out := make(map[string]*AppointmentEntry, len(r.Appointments))
	for id, entry := range r.Appointments {
		if entry == nil || entry.Cancelled {
			out[id] = nil
			continue
		}
		out[id] = entry
	}
	return out
}

// ReferralDetailResponse is the GET /referrals/:id wire format: the
// reconciled state plus its standalone quality_score, so a caller can see
// why a referral ranks in the top-10 quality report without a second call.
type ReferralDetailResponse struct {
	ReferralID        string                       `json:"referral_id"`
	Status            ReferralStatus               `json:"status"`
	ActiveAppointment *ActiveAppointment           `json:"active_appointment"`
	Appointments      map[string]*AppointmentEntry `json:"appointments"`
	Metrics           Metrics                      `json:"metrics"`
	QualityScore      int                          `json:"quality_score"`
	Events            []Event                      `json:"events,omitempty"`
}

// NewReferralDetailResponse renders a reconciled referral state, plus its
// ascending-by-seq event history, into its external wire format.
func NewReferralDetailResponse(r *ReferralState, events []Event) *ReferralDetailResponse {
	return &ReferralDetailResponse{
		ReferralID:        r.ReferralID,
		Status:            r.Status,
		ActiveAppointment: r.ActiveAppointment,
		Appointments:      r.PublicAppointments(),
		Metrics:           r.Metrics,
		QualityScore:      r.Metrics.QualityScore(),
		Events:            events,
	}
}

// AggregateMetrics summarizes a reconciled map for an upload response or
// a dashboard query.
type AggregateMetrics struct {
	Total         int `json:"total"`
	Completed     int `json:"completed"`
	Cancelled     int `json:"cancelled"`
	InProgress    int `json:"inProgress"`
	Scheduled     int `json:"scheduled"`
	NoAppointment int `json:"noAppointment"`
}

// Value implements driver.Valuer for AggregateMetrics.
func (m AggregateMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for AggregateMetrics.
func (m *AggregateMetrics) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into AggregateMetrics", value)
	}
	return json.Unmarshal(bytes, m)
}

// QualityRankEntry is one row of the data-quality top-10 ranking.
type QualityRankEntry struct {
	ReferralID string  `json:"referral_id"`
	Score      int     `json:"score"`
	Metrics    Metrics `json:"metrics"`
}

// Upload is the persisted envelope for one ingest invocation.
type Upload struct {
	ID        string           `json:"uploadId" db:"id"`
	Processed int              `json:"processed" db:"processed"`
	Referrals int              `json:"referrals" db:"referrals"`
	Metrics   AggregateMetrics `json:"metrics" db:"metrics"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
}

// UploadResponse is the response body for POST /uploads.
type UploadResponse struct {
	UploadID  string           `json:"uploadId"`
	Processed int              `json:"processed"`
	Referrals int              `json:"referrals"`
	Metrics   AggregateMetrics `json:"metrics"`
}

package reconcile

import (
	"testing"

	"github.com/apahim/cls-backend/internal/models"
)

func TestAggregateMetrics(t *testing.T) {
	m := ReconciledMap{
		"R1": {Status: models.StatusCompleted},
		"R2": {Status: models.StatusCancelled},
		"R3": {Status: models.StatusSent, ActiveAppointment: &models.ActiveAppointment{ApptID: "A"}},
		"R4": {Status: models.StatusCreated},
	}

	got := AggregateMetrics(m)

	want := models.AggregateMetrics{
		Total:         4,
		Completed:     1,
		Cancelled:     1,
		InProgress:    2,
		Scheduled:     1,
		NoAppointment: 1,
	}

	if got != want {
		t.Errorf("AggregateMetrics() = %+v, want %+v", got, want)
	}
}

func TestAggregateMetrics_Empty(t *testing.T) {
	got := AggregateMetrics(ReconciledMap{})
	if got != (models.AggregateMetrics{}) {
		t.Errorf("AggregateMetrics(empty) = %+v, want all zero", got)
	}
}

func TestDataQualityTop10_RankingAndTiebreak(t *testing.T) {
	m := ReconciledMap{
		"B": {Metrics: models.Metrics{Duplicates: 3}},              // score 3
		"A": {Metrics: models.Metrics{Duplicates: 3}},              // score 3, ties with B
		"C": {Metrics: models.Metrics{TerminalOverrides: 2}},       // score 4
		"D": {Metrics: models.Metrics{}},                           // score 0, excluded
		"E": {Metrics: models.Metrics{SeqGaps: 1, Duplicates: 1}},  // score 2
	}

	got := DataQualityTop10(m)

	if len(got) != 4 {
		t.Fatalf("len(got) = %d, want 4 (score-0 entries excluded)", len(got))
	}

	wantOrder := []string{"C", "A", "B", "E"}
	for i, referralID := range wantOrder {
		if got[i].ReferralID != referralID {
			t.Errorf("entry %d: referral_id = %q, want %q", i, got[i].ReferralID, referralID)
		}
	}
}

func TestDataQualityTop10_CapsAtTen(t *testing.T) {
	m := make(ReconciledMap)
	ids := []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10", "r11"}
	for _, id := range ids {
		m[id] = &models.ReferralState{Metrics: models.Metrics{Duplicates: 1}}
	}

	got := DataQualityTop10(m)
	if len(got) != 10 {
		t.Errorf("len(got) = %d, want 10", len(got))
	}
}

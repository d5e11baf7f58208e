// Package reconcile implements the pure event-reconciliation core:
// grouping, deduplication, gap accounting, ordered replay, and the
// status/appointment state machine. No I/O, no wall-clock dependency.
package reconcile

import (
	"sort"
	"time"

	"github.com/apahim/cls-backend/internal/models"
)

// ReconciledMap is the output of Reconcile: referral_id -> ReferralState.
type ReconciledMap map[string]*models.ReferralState

// Reconcile groups the given events by referral_id and replays each
// referral's events independently, producing the reconciled state. It is
// pure, total, and deterministic: the result does not depend on input
// order as long as events sharing a (referral_id, seq) are identical, and is
// unaffected by exact duplicates beyond the duplicates counter. When events
// at the same seq differ, the one that comes first in the input is kept.
func Reconcile(events []models.Event) ReconciledMap {
	grouped := make(map[string][]models.Event)
	for _, e := range events {
		grouped[e.ReferralID] = append(grouped[e.ReferralID], e)
	}

	out := make(ReconciledMap, len(grouped))
	for referralID, es := range grouped {
		out[referralID] = reconcileOne(referralID, es)
	}
	return out
}

func reconcileOne(referralID string, events []models.Event) *models.ReferralState {
	retained, duplicates := dedupeBySeq(events)

	sort.Slice(retained, func(i, j int) bool {
		return retained[i].Seq < retained[j].Seq
	})

	seqGaps := countGaps(retained)

	state := &models.ReferralState{
		ReferralID:   referralID,
		Status:       models.StatusCreated,
		Appointments: models.AppointmentsMap{},
		Events:       retained,
	}

	var isTerminal bool
	var terminalOverrides, reschedules, cancelledAppts int

	for _, e := range retained {
		switch e.Type {
		case models.EventTypeStatusUpdate:
			s := e.Payload.Status
			if s == "" {
				continue
			}
			if !isTerminal {
				state.Status = s
				if s.IsTerminal() {
					isTerminal = true
				}
				continue
			}
			if s.IsTerminal() {
				state.Status = s
				terminalOverrides++
				continue
			}
			// terminal and s is non-terminal: ignored entirely.

		case models.EventTypeAppointmentSet:
			apptID := e.Payload.ApptID
			startTime := parseStartTime(e.Payload.StartTime)
			existing, seen := state.Appointments[apptID]

			switch {
			case seen && !existing.Cancelled && !existing.StartTime.Equal(startTime):
				reschedules++
			case seen && existing.Cancelled:
				// Resurrecting a cancelled appointment does not count as a
				// reschedule, per the preserved source behavior.
			}

			state.Appointments[apptID] = &models.AppointmentEntry{
				ApptID:    apptID,
				StartTime: startTime,
				Cancelled: false,
			}

		case models.EventTypeAppointmentCancelled:
			apptID := e.Payload.ApptID
			existing, seen := state.Appointments[apptID]
			if seen && !existing.Cancelled {
				existing.Cancelled = true
				cancelledAppts++
			}
		}
	}

	state.ActiveAppointment = selectActiveAppointment(state.Appointments, isTerminal)

	state.Metrics = models.Metrics{
		Duplicates:        duplicates,
		SeqGaps:           seqGaps,
		TerminalOverrides: terminalOverrides,
		Reschedules:       reschedules,
		CancelledAppts:    cancelledAppts,
	}

	return state
}

// dedupeBySeq keeps the first occurrence of each seq value encountered in
// input order, and counts every subsequent occurrence at an already-seen
// seq as a duplicate. The duplicate count does not depend on input order;
// which event is retained at a seq does, when the events at that seq differ.
func dedupeBySeq(events []models.Event) ([]models.Event, int) {
	seen := make(map[int64]bool, len(events))
	retained := make([]models.Event, 0, len(events))
	duplicates := 0

	for _, e := range events {
		if seen[e.Seq] {
			duplicates++
			continue
		}
		seen[e.Seq] = true
		retained = append(retained, e)
	}

	return retained, duplicates
}

// countGaps sums max(0, seq[i+1]-seq[i]-1) over consecutive retained pairs.
// Gaps before the first retained seq or after the last are not counted.
func countGaps(sorted []models.Event) int {
	gaps := 0
	for i := 0; i+1 < len(sorted); i++ {
		delta := sorted[i+1].Seq - sorted[i].Seq - 1
		if delta > 0 {
			gaps += int(delta)
		}
	}
	return gaps
}

// selectActiveAppointment picks the non-cancelled appointment with the
// earliest start_time, tiebroken by ascending appt_id. Returns nil if the
// referral is terminal or has no non-cancelled appointment.
func selectActiveAppointment(appointments models.AppointmentsMap, isTerminal bool) *models.ActiveAppointment {
	if isTerminal {
		return nil
	}

	var best *models.AppointmentEntry
	for _, entry := range appointments {
		if entry == nil || entry.Cancelled {
			continue
		}
		if best == nil {
			best = entry
			continue
		}
		if entry.StartTime.Before(best.StartTime) {
			best = entry
			continue
		}
		if entry.StartTime.Equal(best.StartTime) && entry.ApptID < best.ApptID {
			best = entry
		}
	}

	if best == nil {
		return nil
	}
	return &models.ActiveAppointment{ApptID: best.ApptID, StartTime: best.StartTime}
}

func parseStartTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

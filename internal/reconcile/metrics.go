package reconcile

import (
	"sort"

	"github.com/apahim/cls-backend/internal/models"
)

// AggregateMetrics computes the derived lifecycle counts over a
// reconciled map. Pure function, no I/O.
func AggregateMetrics(m ReconciledMap) models.AggregateMetrics {
	var out models.AggregateMetrics
	out.Total = len(m)

	for _, state := range m {
		switch state.Status {
		case models.StatusCompleted:
			out.Completed++
		case models.StatusCancelled:
			out.Cancelled++
		}
	}

	out.InProgress = out.Total - out.Completed - out.Cancelled

	for _, state := range m {
		if state.Status == models.StatusCompleted || state.Status == models.StatusCancelled {
			continue
		}
		if state.ActiveAppointment != nil {
			out.Scheduled++
		}
	}
	out.NoAppointment = out.InProgress - out.Scheduled

	return out
}

// DataQualityTop10 ranks referrals by score = duplicates + seqGaps +
// 2*terminalOverrides, descending, tiebroken by ascending referral_id, and
// returns the top 10 entries with score > 0.
func DataQualityTop10(m ReconciledMap) []models.QualityRankEntry {
	entries := make([]models.QualityRankEntry, 0, len(m))
	for referralID, state := range m {
		score := state.Metrics.QualityScore()
		if score <= 0 {
			continue
		}
		entries = append(entries, models.QualityRankEntry{
			ReferralID: referralID,
			Score:      score,
			Metrics:    state.Metrics,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ReferralID < entries[j].ReferralID
	})

	if len(entries) > 10 {
		entries = entries[:10]
	}
	return entries
}

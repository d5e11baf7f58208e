package database

import (
	"context"
	"testing"
	"time"

	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
)

func newTestRepoClient(t *testing.T) *Client {
	t.Helper()
	utils.SkipIfNoTestDB(t)

	testDBURL := utils.SetupTestDB(t)
	cfg := config.DatabaseConfig{
		URL:             testDBURL,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}

	client, err := NewClient(cfg)
	utils.AssertError(t, err, false, "Should create client")
	t.Cleanup(func() { client.Close() })

	utils.CreateReferralSchema(t, client.db)
	return client
}

func insertReferral(t *testing.T, client *Client, state *models.ReferralState) {
	t.Helper()
	_, err := client.ExecContext(context.Background(), `
		INSERT INTO referrals (referral_id, status, active_appointment, appointments, metrics)
		VALUES ($1, $2, $3, $4, $5)`,
		state.ReferralID, state.Status, state.ActiveAppointment, state.Appointments, state.Metrics)
	utils.AssertError(t, err, false, "Should insert referral")
}

func TestReferralsRepository_GetByID(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewReferralsRepository(client)

	insertReferral(t, client, &models.ReferralState{
		ReferralID:        "ref-1",
		Status:            models.StatusScheduled,
		ActiveAppointment: &models.ActiveAppointment{ApptID: "appt-1", StartTime: time.Now().UTC().Round(time.Second)},
		Appointments:      models.AppointmentsMap{"appt-1": {ApptID: "appt-1", StartTime: time.Now().UTC().Round(time.Second)}},
		Metrics:           models.Metrics{Duplicates: 1},
	})

	got, err := repo.GetByID(context.Background(), "ref-1")
	utils.AssertError(t, err, false, "Should get referral by id")
	utils.AssertNotNil(t, got, "Referral should not be nil")
	utils.AssertEqual(t, "ref-1", got.ReferralID, "ReferralID should match")
	utils.AssertEqual(t, models.StatusScheduled, got.Status, "Status should match")
	utils.AssertEqual(t, 1, got.Metrics.Duplicates, "Metrics should round-trip")
}

func TestReferralsRepository_GetByID_NotFound(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewReferralsRepository(client)

	_, err := repo.GetByID(context.Background(), "missing")
	utils.AssertError(t, err, true, "Should error for missing referral")
	utils.AssertEqual(t, models.ErrReferralNotFound, err, "Should return ErrReferralNotFound")
}

func TestReferralsRepository_ListAndCount(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewReferralsRepository(client)

	for _, id := range []string{"ref-a", "ref-b", "ref-c"} {
		insertReferral(t, client, &models.ReferralState{
			ReferralID: id,
			Status:     models.StatusCreated,
			Metrics:    models.Metrics{},
		})
	}

	count, err := repo.Count(context.Background())
	utils.AssertError(t, err, false, "Should count referrals")
	utils.AssertEqual(t, 3, count, "Should have 3 referrals")

	page, err := repo.List(context.Background(), models.ListOptions{Limit: 2, Offset: 0})
	utils.AssertError(t, err, false, "Should list referrals")
	utils.AssertEqual(t, 2, len(page), "First page should have 2 rows")
	utils.AssertEqual(t, "ref-a", page[0].ReferralID, "Should be ordered by referral_id")

	rest, err := repo.List(context.Background(), models.ListOptions{Limit: 2, Offset: 2})
	utils.AssertError(t, err, false, "Should list second page")
	utils.AssertEqual(t, 1, len(rest), "Second page should have 1 row")
	utils.AssertEqual(t, "ref-c", rest[0].ReferralID, "Third referral should be ref-c")
}

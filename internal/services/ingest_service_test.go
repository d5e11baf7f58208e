package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/jackc/pgx/v5/pgxpool"
)

func newTestIngestService(t *testing.T) *IngestService {
	t.Helper()
	utils.SkipIfNoTestDB(t)

	testDBURL := utils.SetupTestDB(t)
	repo, err := database.NewRepository(config.DatabaseConfig{
		URL:             testDBURL,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	})
	utils.AssertError(t, err, false, "Should create repository")
	t.Cleanup(func() { repo.Close() })

	utils.CreateReferralSchema(t, repo.GetClient().DB())

	pool, err := pgxpool.New(context.Background(), testDBURL)
	utils.AssertError(t, err, false, "Should create pgx pool")
	t.Cleanup(pool.Close)

	batchWriter := database.NewBatchWriter(pool, config.BatchWriterConfig{
		ChunkSize:     2,
		RetryAttempts: 1,
		RetryBackoff:  10 * time.Millisecond,
	})

	return NewIngestService(repo, batchWriter, nil)
}

func TestIngestService_Upload_ReconcilesAndPersists(t *testing.T) {
	svc := newTestIngestService(t)

	body, err := json.Marshal(map[string]interface{}{
		"events": []map[string]interface{}{
			{"referral_id": "ref-1", "seq": 1, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "SENT"}},
			{"referral_id": "ref-1", "seq": 2, "type": "APPOINTMENT_SET", "payload": map[string]interface{}{"appt_id": "appt-1", "start_time": "2026-01-01T10:00:00Z"}},
			{"referral_id": "ref-2", "seq": 1, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "COMPLETED"}},
		},
	})
	utils.AssertError(t, err, false, "Should marshal batch")

	response, err := svc.Upload(context.Background(), body)
	utils.AssertError(t, err, false, "Should process upload")
	utils.AssertNotNil(t, response, "Response should not be nil")
	utils.AssertEqual(t, 3, response.Processed, "Should report 3 processed events")
	utils.AssertEqual(t, 2, response.Referrals, "Should report 2 distinct referrals")
	utils.AssertEqual(t, 1, response.Metrics.Completed, "One referral completed")
	utils.AssertEqual(t, 1, response.Metrics.Scheduled, "One referral scheduled (appt set, status not terminal)")

	referral, err := svc.repository.Referrals.GetByID(context.Background(), "ref-1")
	utils.AssertError(t, err, false, "Should find persisted referral")
	utils.AssertEqual(t, "appt-1", referral.ActiveAppointment.ApptID, "Active appointment should be persisted")

	events, err := svc.repository.Events.GetByReferral(context.Background(), "ref-1")
	utils.AssertError(t, err, false, "Should find persisted events")
	utils.AssertEqual(t, 2, len(events), "Both events for ref-1 should be persisted")
}

func TestIngestService_Upload_MergesWithExistingHistory(t *testing.T) {
	svc := newTestIngestService(t)
	ctx := context.Background()

	first, err := json.Marshal([]map[string]interface{}{
		{"referral_id": "ref-1", "seq": 1, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "SENT"}},
	})
	utils.AssertError(t, err, false, "Should marshal first batch")
	_, err = svc.Upload(ctx, first)
	utils.AssertError(t, err, false, "Should process first upload")

	second, err := json.Marshal([]map[string]interface{}{
		{"referral_id": "ref-1", "seq": 2, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "COMPLETED"}},
	})
	utils.AssertError(t, err, false, "Should marshal second batch")
	response, err := svc.Upload(ctx, second)
	utils.AssertError(t, err, false, "Should process second upload")
	utils.AssertEqual(t, 1, response.Referrals, "Still a single referral")

	referral, err := svc.repository.Referrals.GetByID(ctx, "ref-1")
	utils.AssertError(t, err, false, "Should find persisted referral")
	utils.AssertEqual(t, "COMPLETED", string(referral.Status), "Status should reflect both events combined")

	events, err := svc.repository.Events.GetByReferral(ctx, "ref-1")
	utils.AssertError(t, err, false, "Should find persisted events")
	utils.AssertEqual(t, 2, len(events), "Both seq-1 and seq-2 should be retained across uploads")
}

func TestIngestService_Upload_OverlappingReingestIsIdempotent(t *testing.T) {
	svc := newTestIngestService(t)
	ctx := context.Background()

	first, err := json.Marshal([]map[string]interface{}{
		{"referral_id": "ref-1", "seq": 1, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "SENT"}},
		{"referral_id": "ref-1", "seq": 2, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "ACKNOWLEDGED"}},
	})
	utils.AssertError(t, err, false, "Should marshal first batch")
	_, err = svc.Upload(ctx, first)
	utils.AssertError(t, err, false, "Should process first upload")

	// Re-ingests seq 2 with a corrected payload and adds a genuinely new
	// seq 3. seq 2 overlaps the first upload; the later write should
	// overwrite the earlier one rather than appending a duplicate row.
	second, err := json.Marshal([]map[string]interface{}{
		{"referral_id": "ref-1", "seq": 2, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "SCHEDULED"}},
		{"referral_id": "ref-1", "seq": 3, "type": "STATUS_UPDATE", "payload": map[string]interface{}{"status": "COMPLETED"}},
	})
	utils.AssertError(t, err, false, "Should marshal second batch")
	_, err = svc.Upload(ctx, second)
	utils.AssertError(t, err, false, "Should process second upload")

	events, err := svc.repository.Events.GetByReferral(ctx, "ref-1")
	utils.AssertError(t, err, false, "Should find persisted events")
	utils.AssertEqual(t, 3, len(events), "Overlapping seq should overwrite, not duplicate, the stored row")
	utils.AssertEqual(t, "SCHEDULED", string(events[1].Payload.Status), "Later write at seq 2 should win")

	// Re-ingesting the exact same second batch again must not change the
	// stored row count: the store is a pure function of (referral_id, seq).
	_, err = svc.Upload(ctx, second)
	utils.AssertError(t, err, false, "Should process repeated upload")

	eventsAfterRetry, err := svc.repository.Events.GetByReferral(ctx, "ref-1")
	utils.AssertError(t, err, false, "Should find persisted events after retry")
	utils.AssertEqual(t, 3, len(eventsAfterRetry), "Retried upload should not grow the stored event count")
}

func TestIngestService_Upload_RejectsInvalidBatch(t *testing.T) {
	svc := newTestIngestService(t)

	_, err := svc.Upload(context.Background(), []byte(`{"events": [{"type": "STATUS_UPDATE"}]}`))
	utils.AssertError(t, err, true, "Missing referral_id should be rejected")
}

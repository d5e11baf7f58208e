package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
	"go.uber.org/zap"
)

// ReferralsRepository handles read access to the reconciled referral states
// stored in the referrals table.
type ReferralsRepository struct {
	client *Client
	logger *utils.Logger
}

// NewReferralsRepository creates a new referrals repository
func NewReferralsRepository(client *Client) *ReferralsRepository {
	return &ReferralsRepository{
		client: client,
		logger: utils.NewLogger("referrals_repository"),
	}
}

// GetByID returns the reconciled state for a single referral.
func (r *ReferralsRepository) GetByID(ctx context.Context, referralID string) (*models.ReferralState, error) {
	query := `
		SELECT referral_id, status, active_appointment, appointments, metrics, updated_at
		FROM referrals
		WHERE referral_id = $1`

	state := &models.ReferralState{}
	err := r.client.QueryRowContext(ctx, query, referralID).Scan(
		&state.ReferralID,
		&state.Status,
		&state.ActiveAppointment,
		&state.Appointments,
		&state.Metrics,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrReferralNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	return state, nil
}

// List returns a page of reconciled referral states, ordered by referral_id
// for stable pagination.
func (r *ReferralsRepository) List(ctx context.Context, opts models.ListOptions) ([]*models.ReferralState, error) {
	query := `
		SELECT referral_id, status, active_appointment, appointments, metrics, updated_at
		FROM referrals
		ORDER BY referral_id
		LIMIT $1 OFFSET $2`

	rows, err := r.client.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer rows.Close()

	var states []*models.ReferralState
	for rows.Next() {
		state := &models.ReferralState{}
		if err := rows.Scan(
			&state.ReferralID,
			&state.Status,
			&state.ActiveAppointment,
			&state.Appointments,
			&state.Metrics,
			&state.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referrals: %w", err)
	}

	r.logger.Debug("Listed referrals", zap.Int("count", len(states)))
	return states, nil
}

// Count returns the total number of referrals.
func (r *ReferralsRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.client.QueryRowContext(ctx, `SELECT COUNT(*) FROM referrals`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

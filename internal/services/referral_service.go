package services

import (
	"context"
	"fmt"

	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
	"go.uber.org/zap"
)

// ReferralService provides the read path over reconciled referral state.
type ReferralService struct {
	repository *database.Repository
	logger     *utils.Logger
}

// NewReferralService creates a new referral service
func NewReferralService(repository *database.Repository) *ReferralService {
	return &ReferralService{
		repository: repository,
		logger:     utils.NewLogger("referral_service"),
	}
}

// GetReferral returns the reconciled state for a single referral, with its
// quality_score attached.
func (s *ReferralService) GetReferral(ctx context.Context, referralID string) (*models.ReferralDetailResponse, error) {
	s.logger.Info("Getting referral", zap.String("referral_id", referralID))

	referral, err := s.repository.Referrals.GetByID(ctx, referralID)
	if err != nil {
		if err == models.ErrReferralNotFound {
			s.logger.Info("Referral not found", zap.String("referral_id", referralID))
			return nil, err
		}
		s.logger.Error("Failed to get referral", zap.String("referral_id", referralID), zap.Error(err))
		return nil, err
	}

	events, err := s.repository.Events.GetByReferral(ctx, referralID)
	if err != nil {
		s.logger.Error("Failed to get referral events", zap.String("referral_id", referralID), zap.Error(err))
		return nil, err
	}

	return models.NewReferralDetailResponse(referral, events), nil
}

// ListReferrals returns a page of reconciled referral states.
func (s *ReferralService) ListReferrals(ctx context.Context, opts models.ListOptions) ([]*models.ReferralState, int, error) {
	if err := opts.Validate(); err != nil {
		return nil, 0, err
	}

	referrals, err := s.repository.Referrals.List(ctx, opts)
	if err != nil {
		s.logger.Error("Failed to list referrals", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list referrals: %w", err)
	}

	total, err := s.repository.Referrals.Count(ctx)
	if err != nil {
		s.logger.Error("Failed to count referrals", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count referrals: %w", err)
	}

	s.logger.Info("Listed referrals", zap.Int("count", len(referrals)), zap.Int("total", total))
	return referrals, total, nil
}

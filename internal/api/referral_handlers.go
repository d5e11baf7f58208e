package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/apahim/cls-backend/internal/middleware"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/services"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReferralHandler exposes the reconciled referral read path.
type ReferralHandler struct {
	referralService *services.ReferralService
	logger          *utils.Logger
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(referralService *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
		logger:          utils.NewLogger("referral_handler"),
	}
}

// RegisterRoutes registers referral routes with the router
func (h *ReferralHandler) RegisterRoutes(r *gin.RouterGroup) {
	referrals := r.Group("/referrals")
	{
		referrals.GET("", h.ListReferrals)
		referrals.GET("/:referral_id", h.GetReferral)
	}
}

// ListReferrals returns a page of reconciled referral states. Any
// authenticated principal may read.
func (h *ReferralHandler) ListReferrals(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.CanViewReferrals() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": utils.NewAPIError(
			utils.ErrorTypeUnauthorized, utils.ErrCodeUnauthorized, "authentication required",
		)})
		return
	}

	opts := models.ListOptions{}
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			opts.Limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			opts.Offset = parsed
		}
	}

	ctx := c.Request.Context()
	referrals, total, err := h.referralService.ListReferrals(ctx, opts)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.NewValidationError(
				utils.ErrCodeInvalidInput, "invalid pagination parameters", err.Error(),
			)})
			return
		}
		h.logger.Error("Failed to list referrals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": utils.WrapError(
			err, utils.ErrorTypeInternal, utils.ErrCodeInternal,
		)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referrals": referrals,
		"total":     total,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}

// GetReferral returns the reconciled state for a single referral, including
// its quality_score. Any authenticated principal may read.
func (h *ReferralHandler) GetReferral(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.CanViewReferrals() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": utils.NewAPIError(
			utils.ErrorTypeUnauthorized, utils.ErrCodeUnauthorized, "authentication required",
		)})
		return
	}

	referralID := c.Param("referral_id")
	ctx := c.Request.Context()

	referral, err := h.referralService.GetReferral(ctx, referralID)
	if err != nil {
		if errors.Is(err, models.ErrReferralNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": utils.NewNotFoundError("referral", referralID)})
			return
		}
		h.logger.Error("Failed to get referral", zap.String("referral_id", referralID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": utils.WrapError(
			err, utils.ErrorTypeInternal, utils.ErrCodeInternal,
		)})
		return
	}

	c.JSON(http.StatusOK, referral)
}

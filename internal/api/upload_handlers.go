package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/apahim/cls-backend/internal/middleware"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/services"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadHandler handles event batch ingest and upload history.
type UploadHandler struct {
	ingestService *services.IngestService
	uploads       uploadsLister
	logger        *utils.Logger
}

// uploadsLister is the minimal repository surface the history listing needs.
type uploadsLister interface {
	GetByID(ctx context.Context, uploadID string) (*models.Upload, error)
	List(ctx context.Context, opts models.ListOptions) ([]*models.Upload, error)
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(ingestService *services.IngestService, uploads uploadsLister) *UploadHandler {
	return &UploadHandler{
		ingestService: ingestService,
		uploads:       uploads,
		logger:        utils.NewLogger("upload_handler"),
	}
}

// RegisterRoutes registers upload routes with the router. Every route is
// admin-only; mount after AuthRequired.
func (h *UploadHandler) RegisterRoutes(r *gin.RouterGroup) {
	uploads := r.Group("/uploads")
	uploads.Use(middleware.RequireAdmin())
	{
		uploads.POST("", h.Upload)
		uploads.GET("", h.ListUploads)
		uploads.GET("/:upload_id", h.GetUpload)
	}
}

// Upload parses and reconciles the posted event batch.
func (h *UploadHandler) Upload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.NewValidationError(
			utils.ErrCodeValidation, "failed to read request body", err.Error(),
		)})
		return
	}

	response, err := h.ingestService.Upload(ctx, body)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.NewValidationError(
				utils.ErrCodeInvalidInput, "invalid event batch", err.Error(),
			)})
			return
		}
		h.logger.Error("Failed to process upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": utils.WrapError(
			err, utils.ErrorTypeInternal, utils.ErrCodeInternal,
		)})
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListUploads lists past upload envelopes.
func (h *UploadHandler) ListUploads(c *gin.Context) {
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
	if err := opts.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.NewValidationError(
			utils.ErrCodeValidation, "invalid pagination parameters", err.Error(),
		)})
		return
	}

	ctx := c.Request.Context()
	uploads, err := h.uploads.List(ctx, opts)
	if err != nil {
		h.logger.Error("Failed to list uploads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": utils.WrapError(
			err, utils.ErrorTypeInternal, utils.ErrCodeInternal,
		)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploads": uploads,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetUpload returns a single upload envelope by id.
func (h *UploadHandler) GetUpload(c *gin.Context) {
	uploadID := c.Param("upload_id")
	ctx := c.Request.Context()

	upload, err := h.uploads.GetByID(ctx, uploadID)
	if err != nil {
		if err == models.ErrUploadNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": utils.NewNotFoundError("upload", uploadID)})
			return
		}
		h.logger.Error("Failed to get upload", zap.String("upload_id", uploadID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": utils.WrapError(
			err, utils.ErrorTypeInternal, utils.ErrCodeInternal,
		)})
		return
	}

	c.JSON(http.StatusOK, upload)
}

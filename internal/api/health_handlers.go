package api

import (
	"net/http"

	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthHandler reports process and database liveness.
type HealthHandler struct {
	repository  *database.Repository
	environment string
	logger      *utils.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(repository *database.Repository, environment string) *HealthHandler {
	return &HealthHandler{
		repository:  repository,
		environment: environment,
		logger:      utils.NewLogger("health_handler"),
	}
}

// RegisterRoutes registers health routes with the router
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.GetHealth)
	r.GET("/internal/health", h.GetInternalHealth)
}

// GetHealth is the shallow liveness probe: it never touches the database.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": h.environment})
}

// GetInternalHealth is the deep readiness probe used by orchestration: it
// reports connection pool stats and degrades the status when the database
// is unreachable.
func (h *HealthHandler) GetInternalHealth(c *gin.Context) {
	ctx := c.Request.Context()

	dbHealth, err := h.repository.Health(ctx)
	if err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"checks": gin.H{
				"database": gin.H{
					"status": "unhealthy",
					"error":  err.Error(),
				},
			},
		})
		return
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": gin.H{
			"database": gin.H{
				"status":         dbHealth.Status,
				"max_open_conns": dbHealth.MaxOpenConns,
				"open_conns":     dbHealth.OpenConns,
				"in_use_conns":   dbHealth.InUseConns,
				"idle_conns":     dbHealth.IdleConns,
				"wait_count":     dbHealth.WaitCount,
				"wait_duration":  dbHealth.WaitDuration.String(),
				"issues":         dbHealth.Issues,
			},
		},
	})
}

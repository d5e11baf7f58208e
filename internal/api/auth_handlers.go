package api

import (
	"net/http"

	"github.com/apahim/cls-backend/internal/auth"
	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/middleware"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles login and the current-principal introspection route.
type AuthHandler struct {
	repository *database.Repository
	issuer     auth.TokenIssuer
	logger     *utils.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(repository *database.Repository, issuer auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{
		repository: repository,
		issuer:     issuer,
		logger:     utils.NewLogger("auth_handler"),
	}
}

// RegisterRoutes registers the unauthenticated auth routes with the router.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
}

// RegisterAuthedRoutes registers the auth routes that require a principal.
func (h *AuthHandler) RegisterAuthedRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.Me)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login validates credentials against the users table and mints a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.NewValidationError(
			utils.ErrCodeValidation, "invalid login request", err.Error(),
		)})
		return
	}

	ctx := c.Request.Context()
	user, err := h.repository.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == models.ErrUserNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": utils.NewAPIError(
				utils.ErrorTypeUnauthorized, utils.ErrCodeUnauthorized, "invalid email or password",
			)})
			return
		}
		h.logger.Error("Failed to look up user", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": utils.NewInternalError(
			utils.ErrCodeInternal, "failed to look up user",
		)})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": utils.NewAPIError(
			utils.ErrorTypeUnauthorized, utils.ErrCodeUnauthorized, "invalid email or password",
		)})
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": utils.NewInternalError(
			utils.ErrCodeInternal, "failed to issue token",
		)})
		return
	}

	h.logger.Info("User logged in", zap.String("email", req.Email), zap.String("role", string(user.Role)))
	c.JSON(http.StatusOK, loginResponse{Token: token, User: *user})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": utils.NewAPIError(
			utils.ErrorTypeUnauthorized, utils.ErrCodeUnauthorized, "authentication required",
		)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subject": principal.Subject,
		"email":   principal.Email,
		"role":    principal.Role,
	})
}

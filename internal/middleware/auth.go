package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apahim/cls-backend/internal/auth"
	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// devPrincipal is attached to every request when auth is disabled, so
// handlers never have to special-case the unauthenticated path.
var devPrincipal = &auth.Principal{Subject: "dev-user", Email: "dev@example.com", Role: "admin"}

// AuthRequired validates the bearer token on every request, resolves the
// principal's role fresh from roles on every request, and attaches the
// result to the Gin context.
func AuthRequired(cfg *config.Config, verifier auth.TokenVerifier, roles auth.RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Auth.Enabled {
			c.Set("principal", devPrincipal)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "AUTH_REQUIRED",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
				"code":  "INVALID_AUTH_HEADER",
			})
			c.Abort()
			return
		}

		principal, err := verifier.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
				"code":  "INVALID_TOKEN",
			})
			c.Abort()
			return
		}

		role, err := roles.RoleForSubject(c.Request.Context(), principal.Subject)
		switch {
		case err == nil:
			principal.Role = role
		case errors.Is(err, models.ErrUserNotFound):
			principal.Role = models.RoleViewer
		default:
			zap.L().Warn("role lookup failed, defaulting to viewer",
				zap.String("subject", principal.Subject), zap.Error(err))
			principal.Role = models.RoleViewer
		}

		c.Set("principal", principal)

		zap.L().Debug("Authenticated request",
			zap.String("subject", principal.Subject),
			zap.String("role", string(principal.Role)),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)

		c.Next()
	}
}

// RequireAdmin rejects any request whose principal is not an admin. Mount
// after AuthRequired.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok || !principal.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin role required",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal extracts the authenticated principal from the Gin context.
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	value, exists := c.Get("principal")
	if !exists {
		return nil, false
	}

	principal, ok := value.(*auth.Principal)
	return principal, ok
}

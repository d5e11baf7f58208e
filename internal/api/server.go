package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apahim/cls-backend/internal/auth"
	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/middleware"
	"github.com/apahim/cls-backend/internal/pubsub"
	"github.com/apahim/cls-backend/internal/services"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	router          *gin.Engine
	logger          *zap.Logger
	repository      *database.Repository
	pubsub          *pubsub.Service
	ingestService    *services.IngestService
	referralService  *services.ReferralService
	authHandler     *AuthHandler
	uploadHandler   *UploadHandler
	referralHandler *ReferralHandler
	healthHandler   *HealthHandler
	httpServer      *http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	repository *database.Repository,
	pubsubService *pubsub.Service,
	batchWriter *database.BatchWriter,
	authenticator *auth.JWTAuthenticator,
) *Server {
	logger := zap.L().Named("api_server")

	// Initialize services
	ingestService := services.NewIngestService(repository, batchWriter, pubsubService)
	referralService := services.NewReferralService(repository)

	// Initialize handlers
	authHandler := NewAuthHandler(repository, authenticator)
	uploadHandler := NewUploadHandler(ingestService, repository.Uploads)
	referralHandler := NewReferralHandler(referralService)
	healthHandler := NewHealthHandler(repository, cfg.Server.Environment)

	// Setup router
	router := setupRouter(cfg, authenticator, repository.Users, authHandler, uploadHandler, referralHandler, healthHandler)

	server := &Server{
		config:          cfg,
		router:          router,
		logger:          logger,
		repository:      repository,
		pubsub:          pubsubService,
		ingestService:   ingestService,
		referralService: referralService,
		authHandler:     authHandler,
		uploadHandler:   uploadHandler,
		referralHandler: referralHandler,
		healthHandler:   healthHandler,
	}

	// Create HTTP server
	server.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return server
}

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	authenticator auth.TokenVerifier,
	roles auth.RoleLookup,
	authHandler *AuthHandler,
	uploadHandler *UploadHandler,
	referralHandler *ReferralHandler,
	healthHandler *HealthHandler,
) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	// Health check endpoints, unauthenticated
	healthHandler.RegisterRoutes(router)

	// API versioning
	v1 := router.Group("/api/v1")

	// Login is the only v1 route that doesn't require a bearer token
	authHandler.RegisterRoutes(v1)

	// Everything else requires a principal. AuthRequired substitutes a
	// fixed admin dev principal when cfg.Auth.Enabled is false.
	authed := v1.Group("")
	authed.Use(middleware.AuthRequired(cfg, authenticator, roles))

	authHandler.RegisterAuthedRoutes(authed)
	uploadHandler.RegisterRoutes(authed)
	referralHandler.RegisterRoutes(authed)

	return router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr),
		zap.String("environment", s.config.Server.Environment),
	)

	// Start server in a goroutine
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	return s.Stop()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server gracefully", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// GetRouter returns the Gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// GetIngestService returns the ingest service (useful for testing)
func (s *Server) GetIngestService() *services.IngestService {
	return s.ingestService
}

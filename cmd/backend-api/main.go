package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/apahim/cls-backend/internal/api"
	"github.com/apahim/cls-backend/internal/auth"
	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/database"
	"github.com/apahim/cls-backend/internal/pubsub"
	"github.com/apahim/cls-backend/internal/utils"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(2)
	}

	// Initialize logger component
	logger := utils.NewLogger("main")

	logger.Info("Starting CLS Backend API",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Server.Environment),
	)

	ctx := context.Background()

	// Initialize database connection (database/sql + lib/pq, for the CRUD
	// read path)
	repo, err := database.NewRepository(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	// Initialize the pgx pool the batch writer uses for chunked upload
	// writes. Kept separate from the database/sql pool above: pgx.Batch
	// needs its own connection lifecycle.
	pgxPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to initialize pgx pool", zap.Error(err))
	}
	defer pgxPool.Close()

	batchWriter := database.NewBatchWriter(pgxPool, cfg.BatchWriter)

	// Initialize Pub/Sub service (publisher-only fan-out: every upload
	// announces completion, readers re-fetch state via GET /referrals)
	pubsubService, err := pubsub.NewService(cfg.PubSub)
	if err != nil {
		logger.Fatal("Failed to initialize Pub/Sub service", zap.Error(err))
	}
	defer pubsubService.Stop()

	if err := pubsubService.Start(); err != nil {
		logger.Fatal("Failed to start Pub/Sub service", zap.Error(err))
	}

	authenticator := auth.NewJWTAuthenticator(cfg.Auth)

	// Initialize the HTTP server
	server := api.NewServer(cfg, repo, pubsubService, batchWriter, authenticator)

	// Start server with context
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	go func() {
		if err := server.Start(serverCtx); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.Int("port", cfg.Server.Port))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/utils"
	"go.uber.org/zap"
)

// Repository provides access to all database repositories
type Repository struct {
	client *Client
	logger *utils.Logger

	Referrals *ReferralsRepository
	Events    *EventsRepository
	Uploads   *UploadsRepository
	Users     *UsersRepository
}

// NewRepository creates a new repository manager
func NewRepository(cfg config.DatabaseConfig) (*Repository, error) {
	logger := utils.NewLogger("repository")

	// Create database client
	client, err := NewClient(cfg)
	if err != nil {
		logger.Error("Failed to create database client", zap.Error(err))
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	repo := &Repository{
		client:    client,
		logger:    logger,
		Referrals: NewReferralsRepository(client),
		Events:    NewEventsRepository(client),
		Uploads:   NewUploadsRepository(client),
		Users:     NewUsersRepository(client),
	}

	logger.Info("Repository initialized successfully")
	return repo, nil
}

// Close closes all database connections
func (r *Repository) Close() error {
	r.logger.Info("Closing repository connections")
	return r.client.Close()
}

// Health returns the health status of the database
func (r *Repository) Health(ctx context.Context) (*HealthStatus, error) {
	return r.client.Health(ctx)
}

// Stats returns database connection statistics
func (r *Repository) Stats() interface{} {
	return r.client.Stats()
}

// Note: this package does not create or migrate the database schema; the
// only DDL in the repository is utils.CreateReferralSchema, used by tests.

// Transaction executes a function within a database transaction
func (r *Repository) Transaction(ctx context.Context, fn func(*Repository) error) error {
	return r.client.Transaction(ctx, func(tx *sql.Tx) error {
		// Create a transaction-aware client
		txClient := &Client{
			db:     nil, // tx will be used instead
			logger: r.client.logger,
			config: r.client.config,
			tx:     tx, // Store the transaction
		}

		// Create a transaction repository with transaction-aware repositories
		txRepo := &Repository{
			client:    txClient,
			logger:    r.logger,
			Referrals: NewReferralsRepository(txClient),
			Events:    NewEventsRepository(txClient),
			Uploads:   NewUploadsRepository(txClient),
			Users:     NewUsersRepository(txClient),
		}

		return fn(txRepo)
	})
}

// GetClient returns the underlying database client
func (r *Repository) GetClient() *Client {
	return r.client
}

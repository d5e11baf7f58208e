package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
)

// UsersRepository handles the users table backing login and role lookups.
type UsersRepository struct {
	client *Client
	logger *utils.Logger
}

// NewUsersRepository creates a new users repository
func NewUsersRepository(client *Client) *UsersRepository {
	return &UsersRepository{
		client: client,
		logger: utils.NewLogger("users_repository"),
	}
}

// GetByEmail returns the user record for a login attempt, including the
// password hash for bcrypt comparison.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT subject, email, role, password_hash FROM users WHERE email = $1`

	user := &models.User{}
	err := r.client.QueryRowContext(ctx, query, email).Scan(
		&user.Subject,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// RoleForSubject returns the current role for a subject. The auth middleware
// calls this on every authenticated request so a role change takes effect
// immediately, without waiting for the subject's bearer token to expire.
func (r *UsersRepository) RoleForSubject(ctx context.Context, subject string) (models.Role, error) {
	query := `SELECT role FROM users WHERE subject = $1`

	var role models.Role
	err := r.client.QueryRowContext(ctx, query, subject).Scan(&role)
	if err == sql.ErrNoRows {
		return "", models.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get role for subject: %w", err)
	}

	return role, nil
}

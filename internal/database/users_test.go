package database

import (
	"context"
	"testing"

	"github.com/apahim/cls-backend/internal/models"
	"github.com/apahim/cls-backend/internal/utils"
)

func insertUser(t *testing.T, client *Client, user *models.User) {
	t.Helper()
	_, err := client.ExecContext(context.Background(), `
		INSERT INTO users (subject, email, role, password_hash)
		VALUES ($1, $2, $3, $4)`,
		user.Subject, user.Email, user.Role, user.PasswordHash)
	utils.AssertError(t, err, false, "Should insert user")
}

func TestUsersRepository_GetByEmail(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewUsersRepository(client)

	insertUser(t, client, &models.User{
		Subject:      "user-1",
		Email:        "admin@example.com",
		Role:         models.RoleAdmin,
		PasswordHash: "hashed-secret",
	})

	user, err := repo.GetByEmail(context.Background(), "admin@example.com")
	utils.AssertError(t, err, false, "Should get user by email")
	utils.AssertEqual(t, "user-1", user.Subject, "Subject should match")
	utils.AssertEqual(t, models.RoleAdmin, user.Role, "Role should match")
	utils.AssertEqual(t, "hashed-secret", user.PasswordHash, "Password hash should round-trip")
}

func TestUsersRepository_GetByEmail_NotFound(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewUsersRepository(client)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	utils.AssertError(t, err, true, "Should error for unknown email")
	utils.AssertEqual(t, models.ErrUserNotFound, err, "Should return ErrUserNotFound")
}

func TestUsersRepository_RoleForSubject(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewUsersRepository(client)

	insertUser(t, client, &models.User{
		Subject:      "user-2",
		Email:        "viewer@example.com",
		Role:         models.RoleViewer,
		PasswordHash: "hashed",
	})

	role, err := repo.RoleForSubject(context.Background(), "user-2")
	utils.AssertError(t, err, false, "Should get role for subject")
	utils.AssertEqual(t, models.RoleViewer, role, "Role should match")
}

func TestUsersRepository_RoleForSubject_NotFound(t *testing.T) {
	client := newTestRepoClient(t)
	repo := NewUsersRepository(client)

	_, err := repo.RoleForSubject(context.Background(), "ghost")
	utils.AssertError(t, err, true, "Should error for unknown subject")
	utils.AssertEqual(t, models.ErrUserNotFound, err, "Should return ErrUserNotFound")
}

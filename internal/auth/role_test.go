package auth

import (
	"testing"

	"github.com/apahim/cls-backend/internal/models"
)

func TestGetAccessLevel(t *testing.T) {
	tests := []struct {
		name     string
		p        *Principal
		expected AccessLevel
	}{
		{
			name:     "admin should have admin access",
			p:        &Principal{Email: "admin@example.com", Role: models.RoleAdmin},
			expected: AdminAccess,
		},
		{
			name:     "viewer should have viewer access",
			p:        &Principal{Email: "viewer@example.com", Role: models.RoleViewer},
			expected: ViewerAccess,
		},
		{
			name:     "nil principal should have viewer access",
			p:        nil,
			expected: ViewerAccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetAccessLevel(tt.p)
			if result != tt.expected {
				t.Errorf("GetAccessLevel() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCanUpload(t *testing.T) {
	tests := []struct {
		name     string
		p        *Principal
		expected bool
	}{
		{
			name:     "admin can upload",
			p:        &Principal{Role: models.RoleAdmin},
			expected: true,
		},
		{
			name:     "viewer cannot upload",
			p:        &Principal{Role: models.RoleViewer},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanUpload(tt.p)
			if result != tt.expected {
				t.Errorf("CanUpload() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestPrincipal_IsAdmin(t *testing.T) {
	admin := &Principal{Role: models.RoleAdmin}
	viewer := &Principal{Role: models.RoleViewer}
	var nilPrincipal *Principal

	if !admin.IsAdmin() {
		t.Errorf("IsAdmin() = false for admin, want true")
	}
	if viewer.IsAdmin() {
		t.Errorf("IsAdmin() = true for viewer, want false")
	}
	if nilPrincipal.IsAdmin() {
		t.Errorf("IsAdmin() = true for nil principal, want false")
	}
}

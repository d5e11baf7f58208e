package auth

import (
	"context"

	"github.com/apahim/cls-backend/internal/models"
)

// RoleLookup resolves the authoritative role for a subject at request time,
// independent of whatever role a bearer token happened to carry at mint
// time. A subject with no row resolves to the viewer default.
type RoleLookup interface {
	RoleForSubject(ctx context.Context, subject string) (models.Role, error)
}

// AccessLevel mirrors the two capability tiers the gate recognizes.
type AccessLevel int

const (
	// ViewerAccess can read referral and reconciliation data.
	ViewerAccess AccessLevel = iota
	// AdminAccess can additionally submit uploads.
	AdminAccess
)

// GetAccessLevel returns the access level a principal holds.
func GetAccessLevel(p *Principal) AccessLevel {
	if p != nil && p.Role == models.RoleAdmin {
		return AdminAccess
	}
	return ViewerAccess
}

// CanUpload determines whether a principal may submit an upload.
func CanUpload(p *Principal) bool {
	return GetAccessLevel(p) == AdminAccess
}

// CanListUploads determines whether a principal may list upload history.
func CanListUploads(p *Principal) bool {
	return GetAccessLevel(p) == AdminAccess
}

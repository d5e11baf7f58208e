package auth

import (
	"github.com/apahim/cls-backend/internal/models"
)

// Principal is the authenticated identity attached to a request context.
type Principal struct {
	Subject string
	Email   string
	Role    models.Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// CanViewReferrals reports whether the principal can read referral data.
// Both roles can; this exists so the handler layer never hardcodes the
// role comparison directly.
func (p *Principal) CanViewReferrals() bool {
	return p != nil
}

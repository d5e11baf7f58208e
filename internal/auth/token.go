package auth

import (
	"fmt"
	"time"

	"github.com/apahim/cls-backend/internal/config"
	"github.com/apahim/cls-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// claims is the JWT payload minted for an authenticated session.
type claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates a bearer token string and returns the principal
// it authenticates.
type TokenVerifier interface {
	Verify(token string) (*Principal, error)
}

// TokenIssuer mints a signed bearer token for an authenticated user.
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// JWTAuthenticator implements TokenVerifier and TokenIssuer with
// HMAC-signed JWTs.
type JWTAuthenticator struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewJWTAuthenticator builds an authenticator from the process auth config.
func NewJWTAuthenticator(cfg config.AuthConfig) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.TokenIssuer,
		audience: cfg.TokenAudience,
		ttl:      cfg.TokenTTL,
	}
}

// Issue signs a bearer token carrying the user's subject, email, and role.
func (a *JWTAuthenticator) Issue(user *models.User) (string, error) {
	now := time.Now()
	c := claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(a.secret)
}

// Verify parses and validates a bearer token, enforcing signature,
// expiry, issuer, and audience.
func (a *JWTAuthenticator) Verify(tokenString string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithAudience(a.audience))

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return &Principal{
		Subject: c.Subject,
		Email:   c.Email,
		Role:    c.Role,
	}, nil
}

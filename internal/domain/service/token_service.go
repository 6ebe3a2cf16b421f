package service

import (
	"evently/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *AccessClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// AccessTokenProvider issues and validates signed, stateless access tokens.
type AccessTokenProvider interface {
	// GenerateToken signs a token carrying the user's id, username and role.
	GenerateToken(user *entity.User) (*entity.AccessToken, error)

	// ValidateToken verifies signature, algorithm, expiry, issuer and audience.
	ValidateToken(tokenString string) (*AccessClaims, error)
}

// RefreshTokenProvider generates opaque refresh tokens.
type RefreshTokenProvider interface {
	// GenerateToken returns a new unguessable token for userID with its expiry.
	GenerateToken(userID uuid.UUID) (*entity.IssuedRefreshToken, error)

	// HashToken returns the storage form of a raw token.
	HashToken(token string) string
}

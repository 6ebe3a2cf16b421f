package entity

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the single current refresh credential of a user.
// Rotation overwrites the record in place; there is no token history.
type RefreshToken struct {
	ID        uuid.UUID // The unique ID for this refresh token record.
	UserID    uuid.UUID // Owner. At most one record exists per user.
	TokenHash string    // Hex SHA-256 of the raw token. The raw value is never stored.
	ExpiresAt time.Time // After this instant the token is rejected.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports whether the token is no longer usable at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IssuedRefreshToken is a freshly generated refresh token as handed to the client.
type IssuedRefreshToken struct {
	Value     string
	ExpiresAt time.Time
}

// AccessToken is a signed, stateless bearer token.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

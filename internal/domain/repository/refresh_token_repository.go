package repository

import (
	"context"

	"evently/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrRefreshTokenNotFound is returned when no refresh token matches the lookup.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenExists is returned by Create when the user already owns a record.
	ErrRefreshTokenExists = errors.New("refresh token already exists for user")
)

// RefreshTokenRepository persists the single current refresh token of each user.
type RefreshTokenRepository interface {
	// FindByUserID retrieves the user's refresh token record.
	FindByUserID(ctx context.Context, userID uuid.UUID, trackChanges bool) (*entity.RefreshToken, error)

	// FindByTokenHash retrieves the record holding the given token hash.
	// Expired records are returned; expiry is a business decision.
	FindByTokenHash(ctx context.Context, tokenHash string) (*entity.RefreshToken, error)

	// Create inserts a new record. It fails with ErrRefreshTokenExists when the
	// user already has one.
	Create(ctx context.Context, token *entity.RefreshToken) error

	// Update overwrites the hash and expiry of an existing record.
	Update(ctx context.Context, token *entity.RefreshToken) error
}

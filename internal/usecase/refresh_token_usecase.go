package usecase

import (
	"context"

	"evently/internal/domain/entity"
	"evently/internal/domain/repository"

	"github.com/google/uuid"
)

// RefreshTokenUsecase manages the single stored refresh token of each user.
//
// repos is the caller's unit of work so writes join its commit; nil runs the
// operation on the service's own repositories.
type RefreshTokenUsecase interface {
	// CreateRefreshToken issues the first token of a user. It fails with
	// ErrRefreshTokenConflict if the user already has one.
	CreateRefreshToken(ctx context.Context, repos repository.RepositoryFactory, userID uuid.UUID) (*entity.IssuedRefreshToken, error)

	// UpdateRefreshToken stores newToken as the user's only token, overwriting
	// any previous one or inserting when none exists.
	UpdateRefreshToken(ctx context.Context, repos repository.RepositoryFactory, userID uuid.UUID, newToken *entity.IssuedRefreshToken, trackChanges bool) error

	// ValidateRefreshToken returns the stored record for a raw token value. Unknown
	// and expired tokens fail with ErrRefreshTokenInvalid.
	ValidateRefreshToken(ctx context.Context, value string) (*entity.RefreshToken, error)
}

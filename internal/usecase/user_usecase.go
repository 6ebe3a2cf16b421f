// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"evently/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Username string
	Password string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created user. PasswordHash is never set.
type RegisterOutput struct {
	User *entity.User
}

// LoginOutput returns the issued token pair after a successful login or refresh.
// The caller places AccessToken in the response body and RefreshToken in a secure cookie.
type LoginOutput struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *entity.User
}

// UserUsecase defines the interface for user-related business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type UserUsecase interface {
	// Register creates a user with role "user" and an initial refresh token in one commit.
	Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error)

	// Login verifies credentials, issues a token pair and rotates the stored refresh token.
	// Unknown username and wrong password fail with the same error.
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)

	// RefreshTokens exchanges a valid refresh token for a new token pair.
	RefreshTokens(ctx context.Context, refreshToken string) (*LoginOutput, error)

	// GrantRole sets the user's role. role is matched case-insensitively.
	GrantRole(ctx context.Context, userID uuid.UUID, role string) (*entity.User, error)

	// EnsureAdmin creates an admin with the given credentials unless the username already exists.
	EnsureAdmin(ctx context.Context, input *RegisterInput) (*entity.User, error)

	GetUserByID(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	GetAllUsers(ctx context.Context, paging entity.Paging) (*entity.UserPage, error)
}

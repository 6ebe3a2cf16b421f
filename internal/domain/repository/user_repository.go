// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"evently/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the persistence operations on users.
//
// trackChanges marks reads whose result will be written back in the same unit of
// work; implementations must serve those from the primary.
type UserRepository interface {
	// FindByUsername retrieves a user by their unique username.
	FindByUsername(ctx context.Context, username string, trackChanges bool) (*entity.User, error)

	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID, trackChanges bool) (*entity.User, error)

	// FindAll returns one page of users ordered by username, plus the total count.
	FindAll(ctx context.Context, paging entity.Paging, trackChanges bool) ([]*entity.User, int64, error)

	// Create persists a new user and fills in its generated fields.
	Create(ctx context.Context, user *entity.User) error

	// Update writes back a modified user.
	Update(ctx context.Context, user *entity.User) error
}

// Package entity contains the core business objects of the auth service.
package entity

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// User is an account that can authenticate against the service.
type User struct {
	ID           uuid.UUID // Primary identity, assigned on creation.
	Username     string    // Login name, unique across all users.
	Email        string    // Contact address supplied at registration.
	PasswordHash string    // Encoded one-way hash of the password. Never leaves the service.
	Role         Role      // Authorization role, "user" on registration.
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Paging is the page request handed through to the persistence layer.
type Paging struct {
	Page int
	Size int
}

const (
	// DefaultPageSize is used when no page size is requested.
	DefaultPageSize = 20
	// MaxPageSize caps a single page.
	MaxPageSize = 100
	// MaxPage keeps (page-1)*size within int range.
	MaxPage = math.MaxInt / MaxPageSize
)

// Normalize returns a copy with page clamped to [1, MaxPage] and size clamped to [1, MaxPageSize].
func (p Paging) Normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}

	return p
}

// Offset is the number of rows to skip for this page.
func (p Paging) Offset() int {
	n := p.Normalize()

	return (n.Page - 1) * n.Size
}

// UserPage is one page of users together with the total row count.
type UserPage struct {
	Users []*User
	Page  int
	Size  int
	Total int64
}

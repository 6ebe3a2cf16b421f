package entity

import (
	"strings"

	"github.com/pkg/errors"
)

// Role represents the authorization role of a user.
type Role string

const (
	// RoleAdmin may manage users and grant roles.
	RoleAdmin Role = "admin"
	// RoleUser is the default role assigned at registration.
	RoleUser Role = "user"
	// RoleManager may read user listings.
	RoleManager Role = "manager"
)

// ErrUnknownRole is returned by ParseRole for names outside the closed role set.
var ErrUnknownRole = errors.New("unknown role")

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleManager:
		return true
	default:
		return false
	}
}

// ParseRole matches name case-insensitively against the known roles.
func ParseRole(name string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(name)))
	if !role.IsValid() {
		return "", errors.Wrapf(ErrUnknownRole, "%q", name)
	}

	return role, nil
}

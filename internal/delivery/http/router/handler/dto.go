// Package handler contains the HTTP handlers for the application.
package handler

import (
	"time"

	"evently/internal/domain/entity"
	"evently/internal/usecase"

	"github.com/google/uuid"
)

// RegisterRequest is the body of POST /api/authentication.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// LoginRequest is the body of POST /api/authentication/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GrantRoleRequest is the body of PUT /api/users/:id/role.
type GrantRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// UserResponse is the public view of a user. It never carries the password hash.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenResponse is returned by login and refresh. The refresh token travels in a cookie.
type TokenResponse struct {
	AccessToken string        `json:"accessToken"`
	TokenType   string        `json:"tokenType"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	User        *UserResponse `json:"user"`
}

// UserPageResponse is one page of users.
type UserPageResponse struct {
	Users []*UserResponse `json:"users"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Total int64           `json:"total"`
}

func toUserResponse(user *entity.User) *UserResponse {
	if user == nil {
		return nil
	}

	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
	}
}

func toTokenResponse(output *usecase.LoginOutput) *TokenResponse {
	return &TokenResponse{
		AccessToken: output.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   output.AccessTokenExpiresAt,
		User:        toUserResponse(output.User),
	}
}

func toUserPageResponse(page *entity.UserPage) *UserPageResponse {
	users := make([]*UserResponse, 0, len(page.Users))
	for _, user := range page.Users {
		users = append(users, toUserResponse(user))
	}

	return &UserPageResponse{
		Users: users,
		Page:  page.Page,
		Size:  page.Size,
		Total: page.Total,
	}
}

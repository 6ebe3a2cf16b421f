package service

import (
	"context"
	"time"
)

// AuthEventType names an authentication lifecycle event.
type AuthEventType string

const (
	AuthEventUserRegistered AuthEventType = "user.registered"
	AuthEventUserLoggedIn   AuthEventType = "user.logged_in"
	AuthEventRoleGranted    AuthEventType = "user.role_granted"
	AuthEventTokenRefreshed AuthEventType = "user.token_refreshed"
)

// AuthEvent is published after a successful authentication state change.
// It never carries credentials.
type AuthEvent struct {
	RequestID  string        `json:"request_id,omitempty"` // For distributed tracing
	Type       AuthEventType `json:"type"`
	UserID     string        `json:"user_id"`
	Username   string        `json:"username"`
	Role       string        `json:"role"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing auth events to a message bus.
type EventPublisher interface {
	// PublishAuthEvent delivers one event.
	PublishAuthEvent(ctx context.Context, event *AuthEvent) error

	// Close releases any resources held by the publisher
	Close() error
}

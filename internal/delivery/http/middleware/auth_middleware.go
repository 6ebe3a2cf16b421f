package middleware

import (
	"log/slog"
	"slices"
	"strings"

	deliverycontext "evently/internal/delivery/context"
	"evently/internal/delivery/http/response"
	"evently/internal/domain/entity"
	domainerrors "evently/internal/domain/errors"
	"evently/internal/domain/service"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// AuthMiddleware provides middleware for JWT authentication and authorization.
type AuthMiddleware struct {
	tokens service.AccessTokenProvider
	logger *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokens service.AccessTokenProvider, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Authenticate validates the bearer access token and stores the caller on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return response.AppError(c, domainerrors.ErrUnauthenticated.WithDetails("authorization header is missing"))
		}

		if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			return response.AppError(c, domainerrors.ErrUnauthenticated.WithDetails("token must use the Bearer scheme"))
		}
		tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])

		claims, err := m.tokens.ValidateToken(tokenString)
		if err != nil {
			deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger).
				Debug("Rejected access token", slog.Any("error", err))

			return response.AppError(c, domainerrors.ErrUnauthenticated.WithDetails("invalid or expired token"))
		}

		userID, err := claims.UserID()
		if err != nil {
			return response.AppError(c, domainerrors.ErrUnauthenticated.WithDetails("invalid subject in token"))
		}

		deliverycontext.SetPrincipal(c, &deliverycontext.Principal{
			UserID:   userID,
			Username: claims.Username,
			Role:     entity.Role(claims.Role),
		})

		return next(c)
	}
}

// RequireRole only lets callers holding one of roles through.
// It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := deliverycontext.GetPrincipal(c)
			if !ok {
				return response.AppError(c, domainerrors.ErrUnauthenticated)
			}

			if !slices.Contains(roles, principal.Role) {
				return response.AppError(c, domainerrors.ErrForbidden)
			}

			return next(c)
		}
	}
}

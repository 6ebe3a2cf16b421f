package context

import (
	"evently/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// KeyPrincipal is the echo.Context key of the authenticated caller.
const KeyPrincipal = "principal"

// Principal is the caller identified by a validated access token.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     entity.Role
}

// SetPrincipal stores the authenticated caller in echo.Context.
func SetPrincipal(c echo.Context, principal *Principal) {
	c.Set(KeyPrincipal, principal)
}

// GetPrincipal returns the authenticated caller, if any.
func GetPrincipal(c echo.Context) (*Principal, bool) {
	principal, ok := c.Get(KeyPrincipal).(*Principal)

	return principal, ok && principal != nil
}

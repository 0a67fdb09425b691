package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role values carried in the JWT "role" claim.
const (
	RoleDriver = "DRIVER"
	RoleRider  = "RIDER"
)

// RequireRole enforces that the authenticated user has one of the given
// roles.  It assumes JWTAuth already stored the role in the context.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

package middleware

// identity.go holds the user-identity helper shared by the rate limiter
// and cache key builders.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user as a string for use in
// Redis keys.  JWTAuth stores the "sub" claim unconverted, so numeric
// and string representations both appear here.  Unauthenticated
// requests key as "anon".
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return "anon"
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/adilbekov/ridepool/internal/handler"
	"github.com/adilbekov/ridepool/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints: ride
// details and the scored search.  The search is the hottest read in the
// system, so it takes an optional caching middleware.
func RegisterPublic(e *echo.Echo, rides *handler.RideHandler, search *handler.SearchHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/rides/:id", rides.Get)
	if cache != nil {
		e.GET("/v1/rides/search", search.Search, cache)
	} else {
		e.GET("/v1/rides/search", search.Search)
	}
}

// RegisterAuth registers authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(middleware.RoleDriver, middleware.RoleRider))
	auth.GET("/me", a.Me)
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/adilbekov/ridepool/internal/handler"
	"github.com/adilbekov/ridepool/internal/middleware"
)

// RegisterRider registers the seat lock and booking endpoints under /v1.
// Locking and confirming are RIDER-only; cancelling a booking is open to
// both roles because the ride's driver may drop a rider, and the engine
// enforces ownership beyond the role check.
func RegisterRider(e *echo.Echo, bookings *handler.BookingHandler, jwtSecret string, lockLimiter echo.MiddlewareFunc) {
	rider := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleRider),
	)
	if lockLimiter != nil {
		rider.POST("/rides/:id/lock", bookings.Lock, lockLimiter)
	} else {
		rider.POST("/rides/:id/lock", bookings.Lock)
	}
	rider.POST("/bookings/:id/confirm", bookings.Confirm)
	rider.GET("/bookings", bookings.My)

	shared := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleRider, middleware.RoleDriver),
	)
	shared.DELETE("/bookings/:id", bookings.Cancel)
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/adilbekov/ridepool/internal/handler"
	"github.com/adilbekov/ridepool/internal/middleware"
)

// RegisterDriver registers DRIVER-scoped endpoints under /v1.  Drivers
// post rides, withdraw or complete them, and flag riders who did not
// show up.
func RegisterDriver(e *echo.Echo, rides *handler.RideHandler, bookings *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleDriver),
	)
	g.POST("/rides", rides.Create)
	g.DELETE("/rides/:id", rides.Cancel)
	g.POST("/rides/:id/complete", rides.Complete)
	g.POST("/bookings/:id/no-show", bookings.NoShow)
}

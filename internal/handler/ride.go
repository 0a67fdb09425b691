package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adilbekov/ridepool/internal/booking"
	"github.com/adilbekov/ridepool/internal/match"
	"github.com/adilbekov/ridepool/internal/model"
)

// RideHandler exposes the driver-facing ride lifecycle.  All methods
// assume JWT authentication and role validation already ran in
// middleware; the engine itself re-checks ownership.
type RideHandler struct {
	Svc *booking.Service
}

func NewRideHandler(svc *booking.Service) *RideHandler {
	if svc == nil {
		panic("nil service passed to NewRideHandler")
	}
	return &RideHandler{Svc: svc}
}

type createRideReq struct {
	FromLabel   string    `json:"from_label"`
	ToLabel     string    `json:"to_label"`
	FromLat     float64   `json:"from_lat"`
	FromLon     float64   `json:"from_lon"`
	ToLat       float64   `json:"to_lat"`
	ToLon       float64   `json:"to_lon"`
	TotalSeats  int       `json:"total_seats"`
	DepartureAt time.Time `json:"departure_at"`
	DistanceKm  float64   `json:"distance_km"` // optional, derived from coordinates when 0
}

type rideResp struct {
	ID             uint64    `json:"id"`
	DriverID       uint64    `json:"driver_id"`
	FromLabel      string    `json:"from_label"`
	ToLabel        string    `json:"to_label"`
	FromLat        float64   `json:"from_lat"`
	FromLon        float64   `json:"from_lon"`
	ToLat          float64   `json:"to_lat"`
	ToLon          float64   `json:"to_lon"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	DepartureAt    time.Time `json:"departure_at"`
	DistanceKm     float64   `json:"distance_km"`
	Status         string    `json:"status"`
}

func toRideResp(r model.Ride) rideResp {
	return rideResp{
		ID:             r.ID,
		DriverID:       r.DriverID,
		FromLabel:      r.FromLabel,
		ToLabel:        r.ToLabel,
		FromLat:        r.FromLat,
		FromLon:        r.FromLon,
		ToLat:          r.ToLat,
		ToLon:          r.ToLon,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		DepartureAt:    r.DepartureAt,
		DistanceKm:     r.DistanceKm,
		Status:         string(r.Status),
	}
}

// Create handles POST /v1/rides.
func (h *RideHandler) Create(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createRideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.FromLabel == "" || req.ToLabel == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from_label/to_label required"})
	}
	dist := req.DistanceKm
	if dist <= 0 {
		dist = match.DistanceKm(req.FromLat, req.FromLon, req.ToLat, req.ToLon)
	}

	ride, err := h.Svc.CreateRide(c.Request().Context(), booking.RideSpec{
		DriverID:    driverID,
		FromLabel:   req.FromLabel,
		ToLabel:     req.ToLabel,
		FromLat:     req.FromLat,
		FromLon:     req.FromLon,
		ToLat:       req.ToLat,
		ToLon:       req.ToLon,
		TotalSeats:  req.TotalSeats,
		DepartureAt: req.DepartureAt,
		DistanceKm:  dist,
	})
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, toRideResp(ride))
}

// Get handles GET /v1/rides/:id.
func (h *RideHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	ride, err := h.Svc.Ride(c.Request().Context(), id)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toRideResp(ride))
}

// Cancel handles DELETE /v1/rides/:id.  Cancelling cascades to every
// open booking on the ride.
func (h *RideHandler) Cancel(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	if err := h.Svc.CancelRide(c.Request().Context(), id, driverID); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Complete handles POST /v1/rides/:id/complete.
func (h *RideHandler) Complete(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	if err := h.Svc.CompleteRide(c.Request().Context(), id, driverID); err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "completed"})
}

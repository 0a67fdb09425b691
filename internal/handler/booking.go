package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/adilbekov/ridepool/internal/booking"
	"github.com/adilbekov/ridepool/internal/model"
	"github.com/adilbekov/ridepool/internal/repository"
)

// BookingHandler exposes the rider-facing seat lock and booking flow,
// plus the driver's no-show endpoint.
type BookingHandler struct {
	Svc      *booking.Service
	Bookings *repository.BookingRepo
}

func NewBookingHandler(svc *booking.Service, bookings *repository.BookingRepo) *BookingHandler {
	if svc == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc, Bookings: bookings}
}

type bookingResp struct {
	ID          uint64  `json:"id"`
	RideID      uint64  `json:"ride_id"`
	RiderID     uint64  `json:"rider_id"`
	LockID      uint64  `json:"lock_id"`
	Status      string  `json:"status"`
	Reason      *string `json:"cancellation_reason,omitempty"`
	ConfirmedAt *string `json:"confirmed_at,omitempty"`
}

func toBookingResp(b model.Booking) bookingResp {
	out := bookingResp{
		ID:      b.ID,
		RideID:  b.RideID,
		RiderID: b.RiderID,
		LockID:  b.LockID,
		Status:  string(b.Status),
		Reason:  b.CancelReason,
	}
	if b.ConfirmedAt != nil {
		s := b.ConfirmedAt.Format("2006-01-02T15:04:05Z07:00")
		out.ConfirmedAt = &s
	}
	return out
}

// Lock handles POST /v1/rides/:id/lock.  On success it returns the lock
// and its pending booking; retrying while the lock is still active
// returns the same grant with the original deadline.
func (h *BookingHandler) Lock(c echo.Context) error {
	riderID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rideID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ride id"})
	}
	grant, err := h.Svc.LockSeat(c.Request().Context(), rideID, riderID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, grant)
}

// Confirm handles POST /v1/bookings/:id/confirm.  Arriving after the
// lock deadline returns 410 and releases the seat.
func (h *BookingHandler) Confirm(c echo.Context) error {
	riderID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Svc.ConfirmBooking(c.Request().Context(), bookingID, riderID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}

// Cancel handles DELETE /v1/bookings/:id.  Riders cancel their own
// bookings; the ride's driver may also cancel a booking on their ride.
func (h *BookingHandler) Cancel(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	reason := strings.TrimSpace(body.Reason)

	if err := h.Svc.CancelBooking(c.Request().Context(), bookingID, callerID, reason); err != nil {
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// NoShow handles POST /v1/bookings/:id/no-show, driver only, after the
// ride has departed.
func (h *BookingHandler) NoShow(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Svc.MarkNoShow(c.Request().Context(), bookingID, driverID); err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "no_show"})
}

// My handles GET /v1/bookings: the caller's bookings, newest first.
func (h *BookingHandler) My(c echo.Context) error {
	riderID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rows, err := h.Bookings.ListByRider(c.Request().Context(), riderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": rows})
}

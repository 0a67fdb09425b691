package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/adilbekov/ridepool/internal/booking"
)

// getUserID extracts the user_id set by the JWT middleware and converts
// it to uint64.  Tokens round-trip numeric claims as float64, so several
// representations must be accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

// engineError maps the booking engine's sentinel errors onto HTTP
// responses.  Every branch returns the sentinel's message so clients see
// a stable, documented string.
func engineError(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, booking.ErrRideNotFound),
		errors.Is(err, booking.ErrBookingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrForbidden),
		errors.Is(err, booking.ErrNotBookingOwner),
		errors.Is(err, booking.ErrSelfBooking):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrLockExpired):
		status = http.StatusGone
	case errors.Is(err, booking.ErrRideNotActive),
		errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, booking.ErrNoSeats),
		errors.Is(err, booking.ErrBookingNotPending),
		errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, booking.ErrScheduleConflict):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrInvalidRideSpec),
		errors.Is(err, booking.ErrDepartureInPast):
		status = http.StatusBadRequest
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

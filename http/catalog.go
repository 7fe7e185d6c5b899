package http

import (
	"fmt"
	"net/http"

	"busbooking/booking"

	"github.com/labstack/echo/v4"
)

func (h handler) ListStations(c echo.Context) error {
	stations, err := h.catalog.ListStations(c.Request().Context())
	if err != nil {
		return internalError(fmt.Errorf("listing stations: %w", err))
	}

	return c.JSON(http.StatusOK, stations)
}

func (h handler) ListMeals(c echo.Context) error {
	meals, err := h.catalog.ListMeals(c.Request().Context())
	if err != nil {
		return internalError(fmt.Errorf("listing meals: %w", err))
	}

	return c.JSON(http.StatusOK, meals)
}

// SeatMap lists seats with their availability on the travel_date query
// parameter, which must be today or later.
func (h handler) SeatMap(c echo.Context) error {
	travelDate := c.QueryParam("travel_date")

	d, err := booking.ParseTravelDate(travelDate)
	if err != nil {
		return bookingError(err)
	}
	if d.Before(booking.Today(h.now())) {
		return bookingError(booking.ErrPastDate)
	}

	seats, err := h.catalog.SeatMap(c.Request().Context(), travelDate)
	if err != nil {
		return internalError(fmt.Errorf("getting seat map: %w", err))
	}

	return c.JSON(http.StatusOK, seats)
}

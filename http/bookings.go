package http

import (
	"fmt"
	"net/http"

	"busbooking/entity"

	"github.com/labstack/echo/v4"
)

type mealSelection struct {
	SeatID int64 `json:"seat_id"`
	MealID int64 `json:"meal_id"`
}

// Route, seat and meal ids are checked by the booking service so that
// callers get a specific error kind for each.
type createBookingRequest struct {
	PassengerName     string          `json:"passenger_name" validate:"required,max=255"`
	PassengerPhone    string          `json:"passenger_phone" validate:"required,max=32"`
	PassengerEmail    *string         `json:"passenger_email" validate:"omitempty,email,max=255"`
	TravelDate        string          `json:"travel_date" validate:"required"`
	BoardingStationID int64           `json:"boarding_station_id"`
	DroppingStationID int64           `json:"dropping_station_id"`
	SeatIDs           []int64         `json:"seat_ids"`
	Meals             []mealSelection `json:"meals"`
}

func (h handler) CreateBooking(c echo.Context) error {
	var request createBookingRequest
	if err := c.Bind(&request); err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to parse request",
			Internal: fmt.Errorf("failed to bind request: %w", err),
		}
	}

	if err := c.Validate(&request); err != nil {
		return err
	}

	meals := make([]entity.MealSelection, len(request.Meals))
	for i, m := range request.Meals {
		meals[i] = entity.MealSelection{SeatID: m.SeatID, MealID: m.MealID}
	}

	details, err := h.bookings.Create(c.Request().Context(), entity.BookingRequest{
		PassengerName:     request.PassengerName,
		PassengerPhone:    request.PassengerPhone,
		PassengerEmail:    request.PassengerEmail,
		TravelDate:        request.TravelDate,
		BoardingStationID: request.BoardingStationID,
		DroppingStationID: request.DroppingStationID,
		SeatIDs:           request.SeatIDs,
		Meals:             meals,
	})
	if err != nil {
		return bookingError(err)
	}

	return c.JSON(http.StatusCreated, details)
}

func (h handler) GetBooking(c echo.Context) error {
	details, err := h.bookings.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return bookingError(err)
	}

	return c.JSON(http.StatusOK, details)
}

func (h handler) CancelBooking(c echo.Context) error {
	cancellation, err := h.bookings.Cancel(c.Request().Context(), c.Param("code"))
	if err != nil {
		return bookingError(err)
	}

	return c.JSON(http.StatusOK, cancellation)
}

package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"busbooking/booking"
	"busbooking/entity"
	"busbooking/likelihood"

	"github.com/labstack/echo/v4"
)

type BookingService interface {
	Create(ctx context.Context, req entity.BookingRequest) (entity.BookingDetails, error)
	Get(ctx context.Context, code string) (entity.BookingDetails, error)
	Cancel(ctx context.Context, code string) (entity.Cancellation, error)
}

type Catalog interface {
	ListStations(ctx context.Context) ([]entity.Station, error)
	ListMeals(ctx context.Context) ([]entity.Meal, error)
	SeatMap(ctx context.Context, travelDate string) ([]entity.SeatAvailability, error)
}

type Refunds interface {
	List(ctx context.Context) ([]entity.Refund, error)
}

type Scorer interface {
	Score(ctx context.Context, in likelihood.Input) likelihood.Score
}

type handler struct {
	bookings BookingService
	catalog  Catalog
	refunds  Refunds
	scorer   Scorer
	now      func() time.Time
}

type errorBody struct {
	Kind      booking.Kind `json:"kind"`
	Message   string       `json:"message"`
	SeatIDs   []int64      `json:"seat_ids,omitempty"`
	MealID    int64        `json:"meal_id,omitempty"`
	StationID int64        `json:"station_id,omitempty"`
	Code      string       `json:"booking_id,omitempty"`
}

// bookingError maps a booking failure to a response. Anything that is not
// a booking.Error is an internal failure and its details stay in the log.
func bookingError(err error) *echo.HTTPError {
	var e *booking.Error
	if !errors.As(err, &e) || e.Kind == booking.KindIDSpaceExhausted {
		return &echo.HTTPError{
			Code:     http.StatusInternalServerError,
			Message:  http.StatusText(http.StatusInternalServerError),
			Internal: err,
		}
	}

	code := http.StatusBadRequest
	switch e.Kind {
	case booking.KindSeatConflict, booking.KindAlreadyCancelled:
		code = http.StatusConflict
	case booking.KindNotFound:
		code = http.StatusNotFound
	}

	return &echo.HTTPError{
		Code: code,
		Message: errorBody{
			Kind:      e.Kind,
			Message:   e.Message,
			SeatIDs:   e.SeatIDs,
			MealID:    e.MealID,
			StationID: e.StationID,
			Code:      e.Code,
		},
		Internal: err,
	}
}

func internalError(err error) *echo.HTTPError {
	return &echo.HTTPError{
		Code:     http.StatusInternalServerError,
		Message:  http.StatusText(http.StatusInternalServerError),
		Internal: err,
	}
}

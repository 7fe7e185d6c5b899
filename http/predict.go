package http

import (
	"fmt"
	"net/http"

	"busbooking/likelihood"

	"github.com/labstack/echo/v4"
)

// Dates and seat counts are not validated here: a missing or unparsable
// date scores neutrally and any seat count is scored.
type predictRequest struct {
	TravelDate   string `json:"travel_date"`
	SeatCount    int    `json:"seat_count"`
	MealSelected bool   `json:"meal_selected"`
	SeatType     string `json:"seat_type" validate:"omitempty,oneof=lower upper"`
}

// Predict never fails on well-formed JSON.
func (h handler) Predict(c echo.Context) error {
	var request predictRequest
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

	score := h.scorer.Score(c.Request().Context(), likelihood.Input{
		TravelDate:   request.TravelDate,
		SeatCount:    request.SeatCount,
		MealSelected: request.MealSelected,
		SeatType:     request.SeatType,
	})

	return c.JSON(http.StatusOK, score)
}

package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind string

const (
	KindInvalidDate        Kind = "invalid_date"
	KindPastDate           Kind = "past_date"
	KindUnknownStation     Kind = "unknown_station"
	KindInvalidRouteOrder  Kind = "invalid_route_order"
	KindEmptySeatSelection Kind = "empty_seat_selection"
	KindSeatConflict       Kind = "seat_conflict"
	KindUnknownSeat        Kind = "unknown_seat"
	KindUnknownMeal        Kind = "unknown_meal"
	KindMealSeatMismatch   Kind = "meal_seat_mismatch"
	KindNotFound           Kind = "not_found"
	KindAlreadyCancelled   Kind = "already_cancelled"
	KindIDSpaceExhausted   Kind = "id_space_exhausted"
)

// Error is a business-rule failure. Storage failures are never reported as
// an Error.
type Error struct {
	Kind    Kind
	Message string

	// Offending entities, set depending on Kind.
	StationID int64
	SeatIDs   []int64
	MealID    int64
	Code      string
}

func (e *Error) Error() string {
	if len(e.SeatIDs) > 0 {
		return fmt.Sprintf("%s: %s (seats %s)", e.Kind, e.Message, joinIDs(e.SeatIDs))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, booking.ErrSeatConflict).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidDate        = &Error{Kind: KindInvalidDate, Message: "invalid date format, use YYYY-MM-DD"}
	ErrPastDate           = &Error{Kind: KindPastDate, Message: "cannot book for past dates"}
	ErrUnknownStation     = &Error{Kind: KindUnknownStation, Message: "invalid station id"}
	ErrInvalidRouteOrder  = &Error{Kind: KindInvalidRouteOrder, Message: "boarding station must be before dropping station on the route"}
	ErrEmptySeatSelection = &Error{Kind: KindEmptySeatSelection, Message: "at least one seat must be selected"}
	ErrSeatConflict       = &Error{Kind: KindSeatConflict, Message: "one or more selected seats are already booked for this date"}
	ErrUnknownSeat        = &Error{Kind: KindUnknownSeat, Message: "invalid seat id"}
	ErrUnknownMeal        = &Error{Kind: KindUnknownMeal, Message: "invalid meal id"}
	ErrMealSeatMismatch   = &Error{Kind: KindMealSeatMismatch, Message: "meal can only be added for booked seats"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "booking not found"}
	ErrAlreadyCancelled   = &Error{Kind: KindAlreadyCancelled, Message: "booking is already cancelled"}
	ErrIDSpaceExhausted   = &Error{Kind: KindIDSpaceExhausted, Message: "could not allocate a unique booking code"}
)

func with(base *Error, modify func(e *Error)) *Error {
	e := *base
	modify(&e)
	return &e
}

// IsValidation reports whether err is a client-side validation failure, as
// opposed to a not-found, conflict or internal failure.
func IsValidation(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Kind {
	case KindInvalidDate, KindPastDate, KindUnknownStation, KindInvalidRouteOrder,
		KindEmptySeatSelection, KindUnknownSeat, KindUnknownMeal, KindMealSeatMismatch:
		return true
	default:
		return false
	}
}

func joinIDs(ids []int64) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(s, ", ")
}

package event

import (
	"time"

	"busbooking/entity"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/shopspring/decimal"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// BookingConfirmed carries the features the confirmation-likelihood engine
// needs, so handlers don't have to read the booking back.
type BookingConfirmed struct {
	Header       header          `json:"header"`
	BookingID    int64           `json:"booking_id"`
	Code         string          `json:"booking_code"`
	TravelDate   string          `json:"travel_date"`
	SeatCount    int             `json:"seat_count"`
	SeatType     string          `json:"seat_type"`
	MealSelected bool            `json:"meal_selected"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

func NewBookingConfirmed(idempotencyKey string, booking entity.Booking, seats []entity.BookingSeatDetail, mealCount int) BookingConfirmed {
	seatType := entity.DeckLower
	if len(seats) > 0 {
		seatType = seats[0].Deck
	}

	return BookingConfirmed{
		Header:       newHeader(idempotencyKey),
		BookingID:    booking.ID,
		Code:         booking.Code,
		TravelDate:   booking.TravelDate,
		SeatCount:    len(seats),
		SeatType:     seatType,
		MealSelected: mealCount > 0,
		TotalAmount:  booking.TotalAmount,
	}
}

type BookingCancelled struct {
	Header       header          `json:"header"`
	BookingID    int64           `json:"booking_id"`
	Code         string          `json:"booking_code"`
	TravelDate   string          `json:"travel_date"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

func NewBookingCancelled(idempotencyKey string, booking entity.Booking) BookingCancelled {
	return BookingCancelled{
		Header:       newHeader(idempotencyKey),
		BookingID:    booking.ID,
		Code:         booking.Code,
		TravelDate:   booking.TravelDate,
		RefundAmount: booking.TotalAmount,
	}
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID                int64           `db:"id"`
	Code              string          `db:"booking_code"`
	PassengerName     string          `db:"passenger_name"`
	PassengerPhone    string          `db:"passenger_phone"`
	PassengerEmail    *string         `db:"passenger_email"`
	TravelDate        string          `db:"travel_date"`
	BoardingStationID int64           `db:"boarding_station_id"`
	DroppingStationID int64           `db:"dropping_station_id"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	Status            string          `db:"status"`
	CreatedAt         time.Time       `db:"created_at"`
}

func (b Booking) Cancelled() bool {
	return b.Status == StatusCancelled
}

type MealSelection struct {
	SeatID int64 `json:"seat_id" db:"seat_id"`
	MealID int64 `json:"meal_id" db:"meal_id"`
}

type BookingRequest struct {
	PassengerName     string
	PassengerPhone    string
	PassengerEmail    *string
	TravelDate        string
	BoardingStationID int64
	DroppingStationID int64
	SeatIDs           []int64
	Meals             []MealSelection
}

type BookingSeatDetail struct {
	SeatID     int64           `json:"-"`
	SeatNumber string          `json:"seat_number"`
	Deck       string          `json:"deck"`
	Price      decimal.Decimal `json:"price"`
}

type BookingMealDetail struct {
	SeatNumber string          `json:"seat_number"`
	MealName   string          `json:"meal_name"`
	Price      decimal.Decimal `json:"price"`
}

// BookingDetails is a booking header together with its resolved stations,
// seats and meals.
type BookingDetails struct {
	ID                   int64               `json:"id"`
	Code                 string              `json:"booking_id"`
	PassengerName        string              `json:"passenger_name"`
	PassengerPhone       string              `json:"passenger_phone"`
	PassengerEmail       *string             `json:"passenger_email"`
	TravelDate           string              `json:"travel_date"`
	BoardingStation      string              `json:"boarding_station"`
	DroppingStation      string              `json:"dropping_station"`
	Seats                []BookingSeatDetail `json:"seats"`
	Meals                []BookingMealDetail `json:"meals"`
	TotalAmount          decimal.Decimal     `json:"total_amount"`
	Status               string              `json:"status"`
	PredictionPercentage *float64            `json:"prediction_percentage"`
	CreatedAt            time.Time           `json:"created_at"`
}

type Cancellation struct {
	Message      string          `json:"message"`
	Code         string          `json:"booking_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

type Refund struct {
	BookingID  int64           `json:"-" db:"booking_id"`
	Code       string          `json:"booking_id" db:"booking_code"`
	Amount     decimal.Decimal `json:"refund_amount" db:"amount"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
}

package entity

import "github.com/shopspring/decimal"

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	DeckLower = "lower"
	DeckUpper = "upper"
)

const (
	PositionLeft  = "left"
	PositionRight = "right"
)

const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
)

// TravelDateLayout is the only accepted form of a travel date.
const TravelDateLayout = "2006-01-02"

type Station struct {
	ID         int64  `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	OrderIndex int    `json:"order_index" db:"order_index"`
}

type Seat struct {
	ID         int64           `json:"id" db:"id"`
	SeatNumber string          `json:"seat_number" db:"seat_number"`
	Deck       string          `json:"deck" db:"deck"`
	Position   string          `json:"position" db:"position"`
	Price      decimal.Decimal `json:"price" db:"price"`
}

type SeatAvailability struct {
	Seat
	IsAvailable bool `json:"is_available" db:"is_available"`
}

type Meal struct {
	ID       int64           `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	MealType string          `json:"meal_type" db:"meal_type"`
	Price    decimal.Decimal `json:"price" db:"price"`
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"busbooking/entity"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var seedStations = []entity.Station{
	{Name: "Ahmedabad", OrderIndex: 0},
	{Name: "Vadodara", OrderIndex: 1},
	{Name: "Surat", OrderIndex: 2},
	{Name: "Vapi", OrderIndex: 3},
	{Name: "Mumbai", OrderIndex: 4},
}

var seedMeals = []entity.Meal{
	{Name: "Poha with Chai", MealType: entity.MealBreakfast, Price: decimal.NewFromInt(80)},
	{Name: "Sandwich with Juice", MealType: entity.MealBreakfast, Price: decimal.NewFromInt(100)},
	{Name: "Veg Thali", MealType: entity.MealLunch, Price: decimal.NewFromInt(150)},
	{Name: "Paneer Rice Bowl", MealType: entity.MealLunch, Price: decimal.NewFromInt(120)},
	{Name: "Roti Sabzi", MealType: entity.MealDinner, Price: decimal.NewFromInt(130)},
	{Name: "Dal Rice", MealType: entity.MealDinner, Price: decimal.NewFromInt(110)},
}

// seedSeats lays out a two-deck sleeper: five berths per side per deck,
// numbered L1-L10 below and U11-U20 above.
func seedSeats() []entity.Seat {
	var seats []entity.Seat
	n := 1
	for _, deck := range []string{entity.DeckLower, entity.DeckUpper} {
		prefix, price := "L", decimal.NewFromInt(800)
		if deck == entity.DeckUpper {
			prefix, price = "U", decimal.NewFromInt(700)
		}
		for _, position := range []string{entity.PositionLeft, entity.PositionRight} {
			for range 5 {
				seats = append(seats, entity.Seat{
					SeatNumber: fmt.Sprintf("%s%d", prefix, n),
					Deck:       deck,
					Position:   position,
					Price:      price,
				})
				n++
			}
		}
	}
	return seats
}

// SeedCatalog fills an empty catalog with the route, the fleet layout and
// the meal menu. It reports whether anything was written.
func SeedCatalog(ctx context.Context, db *sqlx.DB) (bool, error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}

	seeded, err := seed(ctx, tx)
	if err != nil {
		return false, errors.Join(err, tx.Rollback())
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	return seeded, nil
}

func seed(ctx context.Context, tx *sqlx.Tx) (bool, error) {
	var stations int
	if err := tx.GetContext(ctx, &stations, `SELECT count(*) FROM stations`); err != nil {
		return false, fmt.Errorf("counting stations: %w", err)
	}
	if stations > 0 {
		return false, nil
	}

	for _, s := range seedStations {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO stations (name, order_index)
			VALUES (:name, :order_index)`, s); err != nil {
			return false, fmt.Errorf("inserting station %s: %w", s.Name, err)
		}
	}

	for _, s := range seedSeats() {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO seats (seat_number, deck, position, price)
			VALUES (:seat_number, :deck, :position, :price)`, s); err != nil {
			return false, fmt.Errorf("inserting seat %s: %w", s.SeatNumber, err)
		}
	}

	for _, m := range seedMeals {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO meals (name, meal_type, price)
			VALUES (:name, :meal_type, :price)`, m); err != nil {
			return false, fmt.Errorf("inserting meal %s: %w", m.Name, err)
		}
	}

	return true, nil
}

package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func InitialiseDB(ctx context.Context, db *sqlx.DB) error {
	if err := CreateStationsTable(ctx, db); err != nil {
		return fmt.Errorf("creating stations table: %w", err)
	}

	if err := CreateSeatsTable(ctx, db); err != nil {
		return fmt.Errorf("creating seats table: %w", err)
	}

	if err := CreateMealsTable(ctx, db); err != nil {
		return fmt.Errorf("creating meals table: %w", err)
	}

	if err := CreateBookingsTable(ctx, db); err != nil {
		return fmt.Errorf("creating bookings table: %w", err)
	}

	if err := CreateBookingSeatsTable(ctx, db); err != nil {
		return fmt.Errorf("creating booking seats table: %w", err)
	}

	if err := CreateBookingMealsTable(ctx, db); err != nil {
		return fmt.Errorf("creating booking meals table: %w", err)
	}

	if err := CreatePredictionsTable(ctx, db); err != nil {
		return fmt.Errorf("creating predictions table: %w", err)
	}

	if err := CreateRefundsTable(ctx, db); err != nil {
		return fmt.Errorf("creating refunds table: %w", err)
	}

	return nil
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"busbooking/likelihood"

	"github.com/jmoiron/sqlx"
)

func CreatePredictionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS booking_predictions (
		booking_id BIGINT PRIMARY KEY REFERENCES bookings (id),
		prediction_percentage NUMERIC(4, 1) NOT NULL,
		model VARCHAR(32) NOT NULL,
		factors JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);`)
	return err
}

func (r reader) Prediction(ctx context.Context, bookingID int64) (*float64, error) {
	var p float64
	err := sqlx.GetContext(ctx, r.q, &p,
		`SELECT prediction_percentage FROM booking_predictions WHERE booking_id = $1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting prediction: %w", err)
	}
	return &p, nil
}

type PredictionRepo struct {
	db *sqlx.DB
}

func NewPredictionRepo(db *sqlx.DB) PredictionRepo {
	return PredictionRepo{
		db: db,
	}
}

// Save keeps the first score stored for a booking; redelivered events are
// no-ops.
func (r PredictionRepo) Save(ctx context.Context, bookingID int64, score likelihood.Score) error {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("marshalling factors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO booking_predictions
		(booking_id, prediction_percentage, model, factors)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING;`,
		bookingID, score.Percentage, score.Model, string(factors))
	return err
}

package db

import (
	"context"
	"fmt"

	"busbooking/entity"

	"github.com/jmoiron/sqlx"
)

func CreateRefundsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS refunds (
		booking_id BIGINT PRIMARY KEY REFERENCES bookings (id),
		booking_code CHAR(8) NOT NULL,
		amount NUMERIC(10, 2) NOT NULL,
		recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);`)
	return err
}

type RefundRepo struct {
	db *sqlx.DB
}

func NewRefundRepo(db *sqlx.DB) RefundRepo {
	return RefundRepo{
		db: db,
	}
}

func (r RefundRepo) Add(ctx context.Context, refund entity.Refund) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO refunds
		(booking_id, booking_code, amount)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`,
		refund.BookingID, refund.Code, refund.Amount)
	return err
}

func (r RefundRepo) List(ctx context.Context) ([]entity.Refund, error) {
	refunds := []entity.Refund{}
	err := r.db.SelectContext(ctx, &refunds,
		`SELECT booking_id, booking_code, amount, recorded_at FROM refunds ORDER BY recorded_at`)
	if err != nil {
		return nil, fmt.Errorf("selecting refunds: %w", err)
	}
	return refunds, nil
}

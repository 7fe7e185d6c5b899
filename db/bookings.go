package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"busbooking/booking"
	"busbooking/entity"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func CreateBookingsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		booking_code CHAR(8) NOT NULL,
		passenger_name VARCHAR(255) NOT NULL,
		passenger_phone VARCHAR(32) NOT NULL,
		passenger_email VARCHAR(255),
		travel_date DATE NOT NULL,
		boarding_station_id BIGINT NOT NULL REFERENCES stations (id),
		dropping_station_id BIGINT NOT NULL REFERENCES stations (id),
		total_amount NUMERIC(10, 2) NOT NULL CHECK (total_amount >= 0),
		status VARCHAR(16) NOT NULL DEFAULT 'confirmed' CHECK (status IN ('confirmed', 'cancelled')),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		CONSTRAINT bookings_booking_code_key UNIQUE (booking_code)
	);`)
	return err
}

// CreateBookingSeatsTable creates the seat links. A seat is held on a date
// by at most one link that has not been released by a cancellation.
func CreateBookingSeatsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id BIGINT NOT NULL REFERENCES bookings (id),
		seat_id BIGINT NOT NULL REFERENCES seats (id),
		travel_date DATE NOT NULL,
		released BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (booking_id, seat_id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS booking_seats_held_key
		ON booking_seats (travel_date, seat_id) WHERE NOT released;`)
	return err
}

func CreateBookingMealsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS booking_meals (
		id BIGSERIAL PRIMARY KEY,
		booking_id BIGINT NOT NULL REFERENCES bookings (id),
		seat_id BIGINT NOT NULL REFERENCES seats (id),
		meal_id BIGINT NOT NULL REFERENCES meals (id)
	);`)
	return err
}

const bookingColumns = `id, booking_code, passenger_name, passenger_phone, passenger_email,
	to_char(travel_date, 'YYYY-MM-DD') AS travel_date, boarding_station_id, dropping_station_id,
	total_amount, status, created_at`

// Outbox stores an event in the transaction that produced it.
type Outbox interface {
	PublishInTx(ctx context.Context, event any, tx *sql.Tx) error
}

type BookingStore struct {
	reader
	db     *sqlx.DB
	outbox Outbox
}

func NewBookingStore(db *sqlx.DB, outbox Outbox) BookingStore {
	return BookingStore{
		reader: reader{q: db},
		db:     db,
		outbox: outbox,
	}
}

// Transaction runs fn in a serializable transaction. Errors are classified
// so that callers can tell lost races and code collisions from failures.
func (s BookingStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(ctx, bookingTx{reader: reader{q: tx}, tx: tx, outbox: s.outbox}); err != nil {
		return classify(errors.Join(err, tx.Rollback()))
	}

	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("committing transaction: %w", err))
	}

	return nil
}

func (r reader) BookingByCode(ctx context.Context, code string) (entity.Booking, bool, error) {
	return getBooking(ctx, r.q, `SELECT `+bookingColumns+` FROM bookings WHERE booking_code = $1`, code)
}

func (r reader) SeatLinks(ctx context.Context, bookingID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids,
		`SELECT seat_id FROM booking_seats WHERE booking_id = $1 ORDER BY seat_id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("selecting seat links: %w", err)
	}
	return ids, nil
}

func (r reader) MealLinks(ctx context.Context, bookingID int64) ([]entity.MealSelection, error) {
	var meals []entity.MealSelection
	err := sqlx.SelectContext(ctx, r.q, &meals,
		`SELECT seat_id, meal_id FROM booking_meals WHERE booking_id = $1 ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("selecting meal links: %w", err)
	}
	return meals, nil
}

func getBooking(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (entity.Booking, bool, error) {
	var b entity.Booking
	err := sqlx.GetContext(ctx, q, &b, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, false, nil
	}
	if err != nil {
		return entity.Booking{}, false, fmt.Errorf("selecting booking: %w", err)
	}
	return b, true, nil
}

type bookingTx struct {
	reader
	tx     *sqlx.Tx
	outbox Outbox
}

// BookingByCode locks the booking row for the rest of the transaction.
func (t bookingTx) BookingByCode(ctx context.Context, code string) (entity.Booking, bool, error) {
	return getBooking(ctx, t.tx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_code = $1 FOR UPDATE`, code)
}

func (t bookingTx) BookedSeatIDs(ctx context.Context, travelDate string, seatIDs []int64) ([]int64, error) {
	var ids []int64
	err := t.tx.SelectContext(ctx, &ids, `SELECT seat_id FROM booking_seats
		WHERE travel_date = $1 AND seat_id = ANY($2) AND NOT released
		ORDER BY seat_id`, travelDate, pq.Array(seatIDs))
	if err != nil {
		return nil, fmt.Errorf("selecting booked seats: %w", err)
	}
	return ids, nil
}

func (t bookingTx) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_code = $1)`, code)
	if err != nil {
		return false, fmt.Errorf("checking booking code: %w", err)
	}
	return exists, nil
}

func (t bookingTx) InsertBooking(ctx context.Context, b entity.Booking) (entity.Booking, error) {
	row := t.tx.QueryRowxContext(ctx, `INSERT INTO bookings
		(booking_code, passenger_name, passenger_phone, passenger_email, travel_date,
		boarding_station_id, dropping_station_id, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		b.Code, b.PassengerName, b.PassengerPhone, b.PassengerEmail, b.TravelDate,
		b.BoardingStationID, b.DroppingStationID, b.TotalAmount, b.Status)
	if err := row.Scan(&b.ID, &b.CreatedAt); err != nil {
		return entity.Booking{}, err
	}
	return b, nil
}

func (t bookingTx) InsertSeatLinks(ctx context.Context, bookingID int64, travelDate string, seatIDs []int64) error {
	for _, seatID := range seatIDs {
		_, err := t.tx.ExecContext(ctx, `INSERT INTO booking_seats (booking_id, seat_id, travel_date)
			VALUES ($1, $2, $3)`, bookingID, seatID, travelDate)
		if err != nil {
			return fmt.Errorf("seat %d: %w", seatID, err)
		}
	}
	return nil
}

func (t bookingTx) InsertMealLinks(ctx context.Context, bookingID int64, meals []entity.MealSelection) error {
	for _, m := range meals {
		_, err := t.tx.ExecContext(ctx, `INSERT INTO booking_meals (booking_id, seat_id, meal_id)
			VALUES ($1, $2, $3)`, bookingID, m.SeatID, m.MealID)
		if err != nil {
			return fmt.Errorf("meal %d for seat %d: %w", m.MealID, m.SeatID, err)
		}
	}
	return nil
}

// CancelBooking flips the status and releases the seats together.
func (t bookingTx) CancelBooking(ctx context.Context, bookingID int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE bookings SET status = 'cancelled'
		WHERE id = $1 AND status = 'confirmed'`, bookingID)
	if err != nil {
		return fmt.Errorf("executing update query: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected exec result: %d rows affected", n)
	}

	if _, err := t.tx.ExecContext(ctx, `UPDATE booking_seats SET released = TRUE WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("releasing seats: %w", err)
	}

	return nil
}

func (t bookingTx) Publish(ctx context.Context, event any) error {
	return t.outbox.PublishInTx(ctx, event, t.tx.Tx)
}

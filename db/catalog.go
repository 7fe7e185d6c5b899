package db

import (
	"context"
	"fmt"

	"busbooking/entity"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func CreateStationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS stations (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE,
		order_index INTEGER NOT NULL UNIQUE
	);`)
	return err
}

func CreateSeatsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS seats (
		id BIGSERIAL PRIMARY KEY,
		seat_number VARCHAR(10) NOT NULL UNIQUE,
		deck VARCHAR(10) NOT NULL CHECK (deck IN ('lower', 'upper')),
		position VARCHAR(10) NOT NULL CHECK (position IN ('left', 'right')),
		price NUMERIC(10, 2) NOT NULL CHECK (price >= 0)
	);`)
	return err
}

func CreateMealsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meals (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE,
		meal_type VARCHAR(20) NOT NULL CHECK (meal_type IN ('breakfast', 'lunch', 'dinner')),
		price NUMERIC(10, 2) NOT NULL CHECK (price >= 0)
	);`)
	return err
}

// reader runs lookups against either the pool or an open transaction.
type reader struct {
	q sqlx.QueryerContext
}

func (r reader) Stations(ctx context.Context, ids []int64) (map[int64]entity.Station, error) {
	var stations []entity.Station
	err := sqlx.SelectContext(ctx, r.q, &stations,
		`SELECT id, name, order_index FROM stations WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("selecting stations: %w", err)
	}

	return byID(stations, func(s entity.Station) int64 { return s.ID }), nil
}

func (r reader) Seats(ctx context.Context, ids []int64) (map[int64]entity.Seat, error) {
	var seats []entity.Seat
	err := sqlx.SelectContext(ctx, r.q, &seats,
		`SELECT id, seat_number, deck, position, price FROM seats WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("selecting seats: %w", err)
	}

	return byID(seats, func(s entity.Seat) int64 { return s.ID }), nil
}

func (r reader) Meals(ctx context.Context, ids []int64) (map[int64]entity.Meal, error) {
	var meals []entity.Meal
	err := sqlx.SelectContext(ctx, r.q, &meals,
		`SELECT id, name, meal_type, price FROM meals WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("selecting meals: %w", err)
	}

	return byID(meals, func(m entity.Meal) int64 { return m.ID }), nil
}

func byID[T any](items []T, id func(T) int64) map[int64]T {
	m := make(map[int64]T, len(items))
	for _, item := range items {
		m[id(item)] = item
	}
	return m
}

// CatalogRepo serves the read-only catalog and the advisory seat reads.
// None of its reads take part in a booking transaction.
type CatalogRepo struct {
	db *sqlx.DB
}

func NewCatalogRepo(db *sqlx.DB) CatalogRepo {
	return CatalogRepo{
		db: db,
	}
}

func (r CatalogRepo) ListStations(ctx context.Context) ([]entity.Station, error) {
	stations := []entity.Station{}
	err := r.db.SelectContext(ctx, &stations, `SELECT id, name, order_index FROM stations ORDER BY order_index`)
	if err != nil {
		return nil, fmt.Errorf("selecting stations: %w", err)
	}
	return stations, nil
}

func (r CatalogRepo) ListMeals(ctx context.Context) ([]entity.Meal, error) {
	meals := []entity.Meal{}
	err := r.db.SelectContext(ctx, &meals, `SELECT id, name, meal_type, price FROM meals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("selecting meals: %w", err)
	}
	return meals, nil
}

// SeatMap lists every seat with whether it is free on travelDate.
func (r CatalogRepo) SeatMap(ctx context.Context, travelDate string) ([]entity.SeatAvailability, error) {
	seats := []entity.SeatAvailability{}
	err := r.db.SelectContext(ctx, &seats, `SELECT s.id, s.seat_number, s.deck, s.position, s.price,
			NOT EXISTS (
				SELECT 1 FROM booking_seats bs
				WHERE bs.seat_id = s.id AND bs.travel_date = $1 AND NOT bs.released
			) AS is_available
		FROM seats s
		ORDER BY s.id`, travelDate)
	if err != nil {
		return nil, fmt.Errorf("selecting seat map: %w", err)
	}
	return seats, nil
}

// Occupancy counts seats held by confirmed bookings on travelDate against
// the size of the fleet.
func (r CatalogRepo) Occupancy(ctx context.Context, travelDate string) (int, int, error) {
	var counts struct {
		Booked int `db:"booked"`
		Total  int `db:"total"`
	}
	err := r.db.GetContext(ctx, &counts, `SELECT
		(SELECT count(*) FROM booking_seats WHERE travel_date = $1 AND NOT released) AS booked,
		(SELECT count(*) FROM seats) AS total`, travelDate)
	if err != nil {
		return 0, 0, fmt.Errorf("counting occupancy: %w", err)
	}
	return counts.Booked, counts.Total, nil
}

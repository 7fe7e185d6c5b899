package booking

import (
	"context"
	"errors"
	"time"

	"busbooking/bookingcode"
	"busbooking/entity"

	"github.com/cenkalti/backoff/v3"
)

const (
	DefaultMaxCodeAttempts = 10
	DefaultMaxTxAttempts   = 5
)

// Reader exposes the lookups needed to validate and assemble bookings.
// Lookups by id return only the records that exist.
type Reader interface {
	Stations(ctx context.Context, ids []int64) (map[int64]entity.Station, error)
	Seats(ctx context.Context, ids []int64) (map[int64]entity.Seat, error)
	Meals(ctx context.Context, ids []int64) (map[int64]entity.Meal, error)
	BookingByCode(ctx context.Context, code string) (entity.Booking, bool, error)
	SeatLinks(ctx context.Context, bookingID int64) ([]int64, error)
	MealLinks(ctx context.Context, bookingID int64) ([]entity.MealSelection, error)
	Prediction(ctx context.Context, bookingID int64) (*float64, error)
}

// Tx is a unit of work. Everything done through a Tx is committed together
// or not at all.
type Tx interface {
	Reader
	BookedSeatIDs(ctx context.Context, travelDate string, seatIDs []int64) ([]int64, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	InsertBooking(ctx context.Context, booking entity.Booking) (entity.Booking, error)
	InsertSeatLinks(ctx context.Context, bookingID int64, travelDate string, seatIDs []int64) error
	InsertMealLinks(ctx context.Context, bookingID int64, meals []entity.MealSelection) error
	CancelBooking(ctx context.Context, bookingID int64) error
	Publish(ctx context.Context, event any) error
}

type Store interface {
	Reader
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store errors are classified by behaviour rather than by type.
type retryable interface {
	Retryable() bool
}

type codeTaken interface {
	CodeTaken() bool
}

func isRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r) && r.Retryable()
}

func isCodeTaken(err error) bool {
	var c codeTaken
	return errors.As(err, &c) && c.CodeTaken()
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithCodeGenerator(g bookingcode.Generator) Option {
	return func(s *Service) {
		s.newCode = g
	}
}

func WithMaxCodeAttempts(n int) Option {
	return func(s *Service) {
		s.maxCodeAttempts = n
	}
}

func WithMaxTxAttempts(n int) Option {
	return func(s *Service) {
		s.maxTxAttempts = n
	}
}

// WithRetryBackOff sets how long to wait before running a transaction again
// after it lost a race. newBackOff is called once per operation.
func WithRetryBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *Service) {
		s.newBackOff = newBackOff
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// wait sleeps for the next interval of b, or until ctx is done.
func wait(ctx context.Context, b backoff.BackOff) error {
	d := b.NextBackOff()
	if d == backoff.Stop || d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Service struct {
	store           Store
	now             func() time.Time
	newCode         bookingcode.Generator
	maxCodeAttempts int
	maxTxAttempts   int
	newBackOff      func() backoff.BackOff
}

func NewService(store Store, opts ...Option) Service {
	s := Service{
		store:           store,
		now:             time.Now,
		newCode:         bookingcode.Generate,
		maxCodeAttempts: DefaultMaxCodeAttempts,
		maxTxAttempts:   DefaultMaxTxAttempts,
		newBackOff:      defaultBackOff,
	}
	for _, opt := range opts {
		opt(&s)
	}

	return s
}

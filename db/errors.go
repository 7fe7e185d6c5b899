package db

import (
	"errors"

	"github.com/lib/pq"
)

const (
	bookingCodeConstraint = "bookings_booking_code_key"
	heldSeatIndex         = "booking_seats_held_key"
)

// retryableError marks a transaction that lost a race and can be run again
// from the start.
type retryableError struct {
	err error
}

func (e retryableError) Error() string {
	return e.err.Error()
}

func (e retryableError) Unwrap() error {
	return e.err
}

func (e retryableError) Retryable() bool {
	return true
}

// codeTakenError is a booking code collision detected by the unique
// constraint rather than by the in-transaction lookup.
type codeTakenError struct {
	err error
}

func (e codeTakenError) Error() string {
	return e.err.Error()
}

func (e codeTakenError) Unwrap() error {
	return e.err
}

func (e codeTakenError) CodeTaken() bool {
	return true
}

func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code.Name() {
	case "serialization_failure", "deadlock_detected":
		return retryableError{err: err}
	case "unique_violation":
		switch pqErr.Constraint {
		case bookingCodeConstraint:
			return codeTakenError{err: err}
		case heldSeatIndex:
			return retryableError{err: err}
		}
	}

	return err
}

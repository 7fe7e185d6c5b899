package booking

import (
	"context"
	"fmt"

	"busbooking/bookingcode"
	"busbooking/entity"
	"busbooking/event"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Cancel marks the booking as cancelled and returns the refund, which is
// always the full amount. Cancelling twice is an error.
func (s Service) Cancel(ctx context.Context, code string) (entity.Cancellation, error) {
	code = bookingcode.Normalize(code)
	retryWait := s.newBackOff()

	for attempt := 1; ; attempt++ {
		cancellation, err := s.cancel(ctx, code)
		if err == nil {
			log.FromContext(ctx).WithFields(logrus.Fields{
				"booking_code":  cancellation.Code,
				"refund_amount": cancellation.RefundAmount.String(),
			}).Info("Booking cancelled")

			return cancellation, nil
		}

		if isRetryable(err) && attempt < s.maxTxAttempts {
			if err := wait(ctx, retryWait); err != nil {
				return entity.Cancellation{}, err
			}
			continue
		}

		return entity.Cancellation{}, err
	}
}

func (s Service) cancel(ctx context.Context, code string) (entity.Cancellation, error) {
	var cancellation entity.Cancellation

	err := s.store.Transaction(ctx, func(ctx context.Context, tx Tx) error {
		booking, ok, err := tx.BookingByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("getting booking: %w", err)
		}
		if !ok {
			return with(ErrNotFound, func(e *Error) { e.Code = code })
		}
		if booking.Cancelled() {
			return with(ErrAlreadyCancelled, func(e *Error) { e.Code = booking.Code })
		}

		if err := tx.CancelBooking(ctx, booking.ID); err != nil {
			return fmt.Errorf("cancelling booking: %w", err)
		}

		if err := tx.Publish(ctx, event.NewBookingCancelled(uuid.NewString(), booking)); err != nil {
			return fmt.Errorf("publishing booking cancelled: %w", err)
		}

		cancellation = entity.Cancellation{
			Message:      "Booking cancelled successfully",
			Code:         booking.Code,
			RefundAmount: booking.TotalAmount,
		}

		return nil
	})

	return cancellation, err
}

// Get returns the booking with the given code, case-insensitively.
func (s Service) Get(ctx context.Context, code string) (entity.BookingDetails, error) {
	code = bookingcode.Normalize(code)

	booking, ok, err := s.store.BookingByCode(ctx, code)
	if err != nil {
		return entity.BookingDetails{}, fmt.Errorf("getting booking: %w", err)
	}
	if !ok {
		return entity.BookingDetails{}, with(ErrNotFound, func(e *Error) { e.Code = code })
	}

	stations, err := s.store.Stations(ctx, []int64{booking.BoardingStationID, booking.DroppingStationID})
	if err != nil {
		return entity.BookingDetails{}, fmt.Errorf("getting stations: %w", err)
	}

	seatIDs, err := s.store.SeatLinks(ctx, booking.ID)
	if err != nil {
		return entity.BookingDetails{}, fmt.Errorf("getting seat links: %w", err)
	}
	seats, err := s.store.Seats(ctx, seatIDs)
	if err != nil {
		return entity.BookingDetails{}, fmt.Errorf("getting seats: %w", err)
	}

	selections, err := s.store.MealLinks(ctx, booking.ID)
	if err != nil {
		return entity.BookingDetails{}, fmt.Errorf("getting meal links: %w", err)
	}
	mealIDs := make([]int64, len(selections))
	for i, sel := range selections {
		mealIDs[i] = sel.MealID
	}
	meals, err := s.store.Meals(ctx, uniqueIDs(mealIDs))
	if err != nil {
		return entity.BookingDetails{}, fmt.Errorf("getting meals: %w", err)
	}

	details := assemble(
		booking,
		stations[booking.BoardingStationID],
		stations[booking.DroppingStationID],
		seatIDs, seats,
		selections, meals,
	)

	details.PredictionPercentage, err = s.store.Prediction(ctx, booking.ID)
	if err != nil {
		return entity.BookingDetails{}, fmt.Errorf("getting prediction: %w", err)
	}

	return details, nil
}

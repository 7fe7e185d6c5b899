package booking

import (
	"context"
	"fmt"
	"time"

	"busbooking/entity"
	"busbooking/event"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// resolved holds the reference data a valid request refers to.
type resolved struct {
	boarding entity.Station
	dropping entity.Station
	seatIDs  []int64
	seats    map[int64]entity.Seat
	meals    map[int64]entity.Meal
}

// ParseTravelDate parses a YYYY-MM-DD date. Dates are calendar dates and
// carry no zone; they are returned at midnight UTC.
func ParseTravelDate(s string) (time.Time, error) {
	d, err := time.Parse(entity.TravelDateLayout, s)
	if err != nil {
		return time.Time{}, with(ErrInvalidDate, func(e *Error) {
			e.Message = fmt.Sprintf("invalid date format %q, use YYYY-MM-DD", s)
		})
	}
	return d, nil
}

// Today returns the calendar date of now, at midnight UTC.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s Service) checkDate(travelDate string) error {
	d, err := ParseTravelDate(travelDate)
	if err != nil {
		return err
	}
	if d.Before(Today(s.now())) {
		return ErrPastDate
	}
	return nil
}

func (s Service) check(ctx context.Context, tx Tx, req entity.BookingRequest) (resolved, error) {
	var r resolved

	stations, err := tx.Stations(ctx, []int64{req.BoardingStationID, req.DroppingStationID})
	if err != nil {
		return r, fmt.Errorf("getting stations: %w", err)
	}
	for _, id := range []int64{req.BoardingStationID, req.DroppingStationID} {
		if _, ok := stations[id]; !ok {
			return r, with(ErrUnknownStation, func(e *Error) { e.StationID = id })
		}
	}
	r.boarding = stations[req.BoardingStationID]
	r.dropping = stations[req.DroppingStationID]

	if r.boarding.OrderIndex >= r.dropping.OrderIndex {
		return r, ErrInvalidRouteOrder
	}

	r.seatIDs = uniqueIDs(req.SeatIDs)
	if len(r.seatIDs) == 0 {
		return r, ErrEmptySeatSelection
	}

	booked, err := tx.BookedSeatIDs(ctx, req.TravelDate, r.seatIDs)
	if err != nil {
		return r, fmt.Errorf("checking booked seats: %w", err)
	}
	if len(booked) > 0 {
		return r, with(ErrSeatConflict, func(e *Error) { e.SeatIDs = booked })
	}

	r.seats, err = tx.Seats(ctx, r.seatIDs)
	if err != nil {
		return r, fmt.Errorf("getting seats: %w", err)
	}
	var unknown []int64
	for _, id := range r.seatIDs {
		if _, ok := r.seats[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return r, with(ErrUnknownSeat, func(e *Error) { e.SeatIDs = unknown })
	}

	if len(req.Meals) == 0 {
		return r, nil
	}

	mealIDs := make([]int64, len(req.Meals))
	for i, m := range req.Meals {
		mealIDs[i] = m.MealID
	}
	r.meals, err = tx.Meals(ctx, uniqueIDs(mealIDs))
	if err != nil {
		return r, fmt.Errorf("getting meals: %w", err)
	}
	for _, m := range req.Meals {
		if _, ok := r.meals[m.MealID]; !ok {
			return r, with(ErrUnknownMeal, func(e *Error) { e.MealID = m.MealID })
		}
		if _, ok := r.seats[m.SeatID]; !ok {
			return r, with(ErrMealSeatMismatch, func(e *Error) {
				e.MealID = m.MealID
				e.SeatIDs = []int64{m.SeatID}
			})
		}
	}

	return r, nil
}

// Create validates req and persists the booking, its seat links and its
// meal links in a single transaction.
func (s Service) Create(ctx context.Context, req entity.BookingRequest) (entity.BookingDetails, error) {
	if err := s.checkDate(req.TravelDate); err != nil {
		return entity.BookingDetails{}, err
	}

	logger := log.FromContext(ctx)
	codeAttempts := 0
	retryWait := s.newBackOff()

	for attempt := 1; ; attempt++ {
		details, err := s.create(ctx, req, &codeAttempts)
		if err == nil {
			logger.WithFields(logrus.Fields{
				"booking_code": details.Code,
				"travel_date":  details.TravelDate,
				"seats":        len(details.Seats),
			}).Info("Booking created")

			return details, nil
		}

		switch {
		case isCodeTaken(err):
			if codeAttempts >= s.maxCodeAttempts {
				return entity.BookingDetails{}, ErrIDSpaceExhausted
			}
			logger.WithError(err).Info("Booking code taken at commit, retrying")
		case isRetryable(err) && attempt < s.maxTxAttempts:
			logger.WithError(err).WithField("attempt", attempt).Info("Retrying booking transaction")
			if err := wait(ctx, retryWait); err != nil {
				return entity.BookingDetails{}, err
			}
		default:
			return entity.BookingDetails{}, err
		}
	}
}

func (s Service) create(ctx context.Context, req entity.BookingRequest, codeAttempts *int) (entity.BookingDetails, error) {
	var details entity.BookingDetails

	err := s.store.Transaction(ctx, func(ctx context.Context, tx Tx) error {
		r, err := s.check(ctx, tx, req)
		if err != nil {
			return err
		}

		code, err := s.pickCode(ctx, tx, codeAttempts)
		if err != nil {
			return err
		}

		booking, err := tx.InsertBooking(ctx, entity.Booking{
			Code:              code,
			PassengerName:     req.PassengerName,
			PassengerPhone:    req.PassengerPhone,
			PassengerEmail:    req.PassengerEmail,
			TravelDate:        req.TravelDate,
			BoardingStationID: r.boarding.ID,
			DroppingStationID: r.dropping.ID,
			TotalAmount:       total(r, req.Meals),
			Status:            entity.StatusConfirmed,
		})
		if err != nil {
			return fmt.Errorf("inserting booking: %w", err)
		}

		if err := tx.InsertSeatLinks(ctx, booking.ID, booking.TravelDate, r.seatIDs); err != nil {
			return fmt.Errorf("inserting seat links: %w", err)
		}

		if len(req.Meals) > 0 {
			if err := tx.InsertMealLinks(ctx, booking.ID, req.Meals); err != nil {
				return fmt.Errorf("inserting meal links: %w", err)
			}
		}

		details = assemble(booking, r.boarding, r.dropping, r.seatIDs, r.seats, req.Meals, r.meals)

		e := event.NewBookingConfirmed(uuid.NewString(), booking, details.Seats, len(details.Meals))
		if err := tx.Publish(ctx, e); err != nil {
			return fmt.Errorf("publishing booking confirmed: %w", err)
		}

		return nil
	})

	return details, err
}

// pickCode draws codes until one is unused. The store's unique constraint
// re-checks the winner at commit.
func (s Service) pickCode(ctx context.Context, tx Tx, attempts *int) (string, error) {
	for *attempts < s.maxCodeAttempts {
		*attempts++

		code := s.newCode()
		exists, err := tx.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking booking code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrIDSpaceExhausted
}

func total(r resolved, meals []entity.MealSelection) decimal.Decimal {
	sum := decimal.Zero
	for _, id := range r.seatIDs {
		sum = sum.Add(r.seats[id].Price)
	}
	for _, m := range meals {
		sum = sum.Add(r.meals[m.MealID].Price)
	}
	return sum
}

func assemble(
	booking entity.Booking,
	boarding, dropping entity.Station,
	seatIDs []int64,
	seats map[int64]entity.Seat,
	selections []entity.MealSelection,
	meals map[int64]entity.Meal,
) entity.BookingDetails {
	seatDetails := make([]entity.BookingSeatDetail, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat := seats[id]
		seatDetails = append(seatDetails, entity.BookingSeatDetail{
			SeatID:     seat.ID,
			SeatNumber: seat.SeatNumber,
			Deck:       seat.Deck,
			Price:      seat.Price,
		})
	}

	mealDetails := make([]entity.BookingMealDetail, 0, len(selections))
	for _, sel := range selections {
		meal, mealOK := meals[sel.MealID]
		seat, seatOK := seats[sel.SeatID]
		if !mealOK || !seatOK {
			continue
		}
		mealDetails = append(mealDetails, entity.BookingMealDetail{
			SeatNumber: seat.SeatNumber,
			MealName:   meal.Name,
			Price:      meal.Price,
		})
	}

	return entity.BookingDetails{
		ID:              booking.ID,
		Code:            booking.Code,
		PassengerName:   booking.PassengerName,
		PassengerPhone:  booking.PassengerPhone,
		PassengerEmail:  booking.PassengerEmail,
		TravelDate:      booking.TravelDate,
		BoardingStation: boarding.Name,
		DroppingStation: dropping.Name,
		Seats:           seatDetails,
		Meals:           mealDetails,
		TotalAmount:     booking.TotalAmount,
		Status:          booking.Status,
		CreatedAt:       booking.CreatedAt,
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

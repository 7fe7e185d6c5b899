package booking_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"busbooking/booking"
	"busbooking/entity"

	"github.com/shopspring/decimal"
)

type codeTakenError struct{}

func (codeTakenError) Error() string   { return "booking code taken" }
func (codeTakenError) CodeTaken() bool { return true }

type serializationError struct{}

func (serializationError) Error() string   { return "could not serialize access" }
func (serializationError) Retryable() bool { return true }

type seatLink struct {
	bookingID  int64
	seatID     int64
	travelDate string
}

type mealLink struct {
	bookingID int64
	entity.MealSelection
}

type memState struct {
	nextID      int64
	bookings    []entity.Booking
	seatLinks   []seatLink
	mealLinks   []mealLink
	events      []any
	predictions map[int64]float64
}

func (s memState) clone() memState {
	c := s
	c.bookings = slices.Clone(s.bookings)
	c.seatLinks = slices.Clone(s.seatLinks)
	c.mealLinks = slices.Clone(s.mealLinks)
	c.events = slices.Clone(s.events)
	return c
}

type catalog struct {
	stations map[int64]entity.Station
	seats    map[int64]entity.Seat
	meals    map[int64]entity.Meal
}

// memStore serializes transactions behind a single lock, which is the
// strongest isolation the service can ask for.
type memStore struct {
	lock    sync.Mutex
	catalog catalog
	state   memState

	// Errors returned instead of committing, one per transaction.
	commitErrors []error
	// Error returned by InsertMealLinks.
	mealLinkErr error

	transactions int
}

func newMemStore() *memStore {
	return &memStore{
		catalog: catalog{
			stations: map[int64]entity.Station{
				1: {ID: 1, Name: "Ahmedabad", OrderIndex: 0},
				2: {ID: 2, Name: "Vadodara", OrderIndex: 1},
				3: {ID: 3, Name: "Surat", OrderIndex: 2},
			},
			seats: map[int64]entity.Seat{
				1: {ID: 1, SeatNumber: "L1", Deck: entity.DeckLower, Position: entity.PositionLeft, Price: decimal.NewFromInt(800)},
				2: {ID: 2, SeatNumber: "L2", Deck: entity.DeckLower, Position: entity.PositionLeft, Price: decimal.NewFromInt(800)},
				3: {ID: 3, SeatNumber: "U11", Deck: entity.DeckUpper, Position: entity.PositionRight, Price: decimal.RequireFromString("700.50")},
			},
			meals: map[int64]entity.Meal{
				1: {ID: 1, Name: "Poha with Chai", MealType: entity.MealBreakfast, Price: decimal.NewFromInt(80)},
				2: {ID: 2, Name: "Veg Thali", MealType: entity.MealLunch, Price: decimal.RequireFromString("150.25")},
			},
		},
		state: memState{nextID: 1, predictions: map[int64]float64{}},
	}
}

func (s *memStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.transactions++

	tx := &memTx{view: view{catalog: &s.catalog, state: s.state.clone()}, store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if len(s.commitErrors) > 0 {
		err := s.commitErrors[0]
		s.commitErrors = s.commitErrors[1:]
		return err
	}

	s.state = tx.state

	return nil
}

func (s *memStore) view() view {
	s.lock.Lock()
	defer s.lock.Unlock()
	return view{catalog: &s.catalog, state: s.state.clone()}
}

func (s *memStore) Stations(ctx context.Context, ids []int64) (map[int64]entity.Station, error) {
	return s.view().Stations(ctx, ids)
}

func (s *memStore) Seats(ctx context.Context, ids []int64) (map[int64]entity.Seat, error) {
	return s.view().Seats(ctx, ids)
}

func (s *memStore) Meals(ctx context.Context, ids []int64) (map[int64]entity.Meal, error) {
	return s.view().Meals(ctx, ids)
}

func (s *memStore) BookingByCode(ctx context.Context, code string) (entity.Booking, bool, error) {
	return s.view().BookingByCode(ctx, code)
}

func (s *memStore) SeatLinks(ctx context.Context, bookingID int64) ([]int64, error) {
	return s.view().SeatLinks(ctx, bookingID)
}

func (s *memStore) MealLinks(ctx context.Context, bookingID int64) ([]entity.MealSelection, error) {
	return s.view().MealLinks(ctx, bookingID)
}

func (s *memStore) Prediction(ctx context.Context, bookingID int64) (*float64, error) {
	return s.view().Prediction(ctx, bookingID)
}

func (s *memStore) confirmedLinks(travelDate string, seatID int64) int {
	v := s.view()
	n := 0
	for _, l := range v.state.seatLinks {
		if l.travelDate == travelDate && l.seatID == seatID && v.confirmed(l.bookingID) {
			n++
		}
	}
	return n
}

func (s *memStore) bookings() []entity.Booking {
	return s.view().state.bookings
}

func (s *memStore) events() []any {
	return s.view().state.events
}

type view struct {
	catalog *catalog
	state   memState
}

func (v view) Stations(_ context.Context, ids []int64) (map[int64]entity.Station, error) {
	out := make(map[int64]entity.Station)
	for _, id := range ids {
		if st, ok := v.catalog.stations[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (v view) Seats(_ context.Context, ids []int64) (map[int64]entity.Seat, error) {
	out := make(map[int64]entity.Seat)
	for _, id := range ids {
		if seat, ok := v.catalog.seats[id]; ok {
			out[id] = seat
		}
	}
	return out, nil
}

func (v view) Meals(_ context.Context, ids []int64) (map[int64]entity.Meal, error) {
	out := make(map[int64]entity.Meal)
	for _, id := range ids {
		if meal, ok := v.catalog.meals[id]; ok {
			out[id] = meal
		}
	}
	return out, nil
}

func (v view) BookingByCode(_ context.Context, code string) (entity.Booking, bool, error) {
	for _, b := range v.state.bookings {
		if b.Code == code {
			return b, true, nil
		}
	}
	return entity.Booking{}, false, nil
}

func (v view) SeatLinks(_ context.Context, bookingID int64) ([]int64, error) {
	var ids []int64
	for _, l := range v.state.seatLinks {
		if l.bookingID == bookingID {
			ids = append(ids, l.seatID)
		}
	}
	return ids, nil
}

func (v view) MealLinks(_ context.Context, bookingID int64) ([]entity.MealSelection, error) {
	var out []entity.MealSelection
	for _, l := range v.state.mealLinks {
		if l.bookingID == bookingID {
			out = append(out, l.MealSelection)
		}
	}
	return out, nil
}

func (v view) Prediction(_ context.Context, bookingID int64) (*float64, error) {
	p, ok := v.state.predictions[bookingID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (v view) confirmed(bookingID int64) bool {
	for _, b := range v.state.bookings {
		if b.ID == bookingID {
			return b.Status == entity.StatusConfirmed
		}
	}
	return false
}

type memTx struct {
	view
	store *memStore
}

func (t *memTx) BookedSeatIDs(_ context.Context, travelDate string, seatIDs []int64) ([]int64, error) {
	var booked []int64
	for _, id := range seatIDs {
		for _, l := range t.state.seatLinks {
			if l.seatID == id && l.travelDate == travelDate && t.confirmed(l.bookingID) {
				booked = append(booked, id)
				break
			}
		}
	}
	return booked, nil
}

func (t *memTx) CodeExists(ctx context.Context, code string) (bool, error) {
	_, ok, err := t.BookingByCode(ctx, code)
	return ok, err
}

func (t *memTx) InsertBooking(_ context.Context, b entity.Booking) (entity.Booking, error) {
	for _, existing := range t.state.bookings {
		if existing.Code == b.Code {
			return entity.Booking{}, codeTakenError{}
		}
	}

	b.ID = t.state.nextID
	b.CreatedAt = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	t.state.nextID++
	t.state.bookings = append(t.state.bookings, b)

	return b, nil
}

func (t *memTx) InsertSeatLinks(_ context.Context, bookingID int64, travelDate string, seatIDs []int64) error {
	for _, id := range seatIDs {
		t.state.seatLinks = append(t.state.seatLinks, seatLink{bookingID: bookingID, seatID: id, travelDate: travelDate})
	}
	return nil
}

func (t *memTx) InsertMealLinks(_ context.Context, bookingID int64, meals []entity.MealSelection) error {
	if t.store.mealLinkErr != nil {
		return t.store.mealLinkErr
	}
	for _, m := range meals {
		t.state.mealLinks = append(t.state.mealLinks, mealLink{bookingID: bookingID, MealSelection: m})
	}
	return nil
}

func (t *memTx) CancelBooking(_ context.Context, bookingID int64) error {
	for i, b := range t.state.bookings {
		if b.ID == bookingID {
			t.state.bookings[i].Status = entity.StatusCancelled
			return nil
		}
	}
	return errors.New("booking not found")
}

func (t *memTx) Publish(_ context.Context, event any) error {
	t.state.events = append(t.state.events, event)
	return nil
}

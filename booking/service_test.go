package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"busbooking/booking"
	"busbooking/bookingcode"
	"busbooking/entity"
	"busbooking/event"

	"github.com/cenkalti/backoff/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday afternoon.
var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func newService(store *memStore, opts ...booking.Option) booking.Service {
	return booking.NewService(store, append([]booking.Option{booking.WithClock(fixedClock)}, opts...)...)
}

func validRequest() entity.BookingRequest {
	email := "asha@example.com"
	return entity.BookingRequest{
		PassengerName:     "Asha Patel",
		PassengerPhone:    "9876543210",
		PassengerEmail:    &email,
		TravelDate:        "2026-03-20",
		BoardingStationID: 1,
		DroppingStationID: 3,
		SeatIDs:           []int64{1, 3},
		Meals: []entity.MealSelection{
			{SeatID: 1, MealID: 1},
			{SeatID: 3, MealID: 2},
		},
	}
}

// sequence returns a generator that yields codes in order and then falls
// back to random ones.
func sequence(codes ...string) bookingcode.Generator {
	var lock sync.Mutex
	return func() string {
		lock.Lock()
		defer lock.Unlock()
		if len(codes) == 0 {
			return bookingcode.Generate()
		}
		c := codes[0]
		codes = codes[1:]
		return c
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	details, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	assert.True(t, bookingcode.Valid(details.Code), "code %q", details.Code)
	assert.Equal(t, entity.StatusConfirmed, details.Status)
	assert.Equal(t, "Ahmedabad", details.BoardingStation)
	assert.Equal(t, "Surat", details.DroppingStation)
	assert.Equal(t, "2026-03-20", details.TravelDate)
	require.Len(t, details.Seats, 2)
	assert.Equal(t, "L1", details.Seats[0].SeatNumber)
	assert.Equal(t, "U11", details.Seats[1].SeatNumber)
	require.Len(t, details.Meals, 2)
	assert.Equal(t, "U11", details.Meals[1].SeatNumber)
	assert.Equal(t, "Veg Thali", details.Meals[1].MealName)

	// 800 + 700.50 + 80 + 150.25
	assert.True(t, decimal.RequireFromString("1730.75").Equal(details.TotalAmount), details.TotalAmount.String())

	require.Len(t, store.bookings(), 1)
	assert.Equal(t, 1, store.confirmedLinks("2026-03-20", 1))
	assert.Equal(t, 1, store.confirmedLinks("2026-03-20", 3))

	require.Len(t, store.events(), 1)
	e, ok := store.events()[0].(event.BookingConfirmed)
	require.True(t, ok)
	assert.Equal(t, details.Code, e.Code)
	assert.Equal(t, 2, e.SeatCount)
	assert.Equal(t, entity.DeckLower, e.SeatType)
	assert.True(t, e.MealSelected)
}

func TestService_Create_priceInvariant(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	requests := []entity.BookingRequest{
		{TravelDate: "2026-03-11", BoardingStationID: 1, DroppingStationID: 2, SeatIDs: []int64{1}},
		{TravelDate: "2026-03-11", BoardingStationID: 1, DroppingStationID: 3, SeatIDs: []int64{2, 3}, Meals: []entity.MealSelection{{SeatID: 2, MealID: 2}, {SeatID: 2, MealID: 1}}},
		{TravelDate: "2026-03-12", BoardingStationID: 2, DroppingStationID: 3, SeatIDs: []int64{3}, Meals: []entity.MealSelection{{SeatID: 3, MealID: 2}}},
	}

	for _, req := range requests {
		details, err := svc.Create(ctx, req)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, s := range details.Seats {
			sum = sum.Add(s.Price)
		}
		for _, m := range details.Meals {
			sum = sum.Add(m.Price)
		}
		assert.True(t, sum.Equal(details.TotalAmount), "total %s, sum of parts %s", details.TotalAmount, sum)
	}
}

func TestService_Create_todayIsBookable(t *testing.T) {
	svc := newService(newMemStore())

	req := validRequest()
	req.TravelDate = "2026-03-10"

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestToday(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	testCases := []struct {
		name string
		now  time.Time
		want string
	}{
		{name: "late evening keeps the clock's date", now: time.Date(2026, 3, 10, 23, 30, 0, 0, ist), want: "2026-03-10"},
		{name: "early morning is not pulled back to the UTC date", now: time.Date(2026, 3, 11, 1, 0, 0, 0, ist), want: "2026-03-11"},
		{name: "utc", now: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), want: "2026-03-10"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			today := booking.Today(tc.now)
			assert.Equal(t, tc.want, today.Format(entity.TravelDateLayout))
			assert.Equal(t, time.UTC, today.Location())
		})
	}
}

func TestService_Create_duplicateSeatIDsAreCollapsed(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	req := validRequest()
	req.SeatIDs = []int64{1, 1}
	req.Meals = nil

	details, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, details.Seats, 1)
	assert.True(t, decimal.NewFromInt(800).Equal(details.TotalAmount))
	assert.Equal(t, 1, store.confirmedLinks("2026-03-20", 1))
}

func TestService_Create_validation(t *testing.T) {
	testCases := []struct {
		name    string
		modify  func(r *entity.BookingRequest)
		kind    error
		seatIDs []int64
	}{
		{
			name:   "unparsable date",
			modify: func(r *entity.BookingRequest) { r.TravelDate = "20-03-2026" },
			kind:   booking.ErrInvalidDate,
		},
		{
			name:   "impossible date",
			modify: func(r *entity.BookingRequest) { r.TravelDate = "2026-02-30" },
			kind:   booking.ErrInvalidDate,
		},
		{
			name:   "past date",
			modify: func(r *entity.BookingRequest) { r.TravelDate = "2026-03-09" },
			kind:   booking.ErrPastDate,
		},
		{
			name:   "unknown boarding station",
			modify: func(r *entity.BookingRequest) { r.BoardingStationID = 99 },
			kind:   booking.ErrUnknownStation,
		},
		{
			name:   "unknown dropping station",
			modify: func(r *entity.BookingRequest) { r.DroppingStationID = 99 },
			kind:   booking.ErrUnknownStation,
		},
		{
			name: "reversed route",
			modify: func(r *entity.BookingRequest) {
				r.BoardingStationID = 3
				r.DroppingStationID = 1
			},
			kind: booking.ErrInvalidRouteOrder,
		},
		{
			name: "same station",
			modify: func(r *entity.BookingRequest) {
				r.BoardingStationID = 2
				r.DroppingStationID = 2
			},
			kind: booking.ErrInvalidRouteOrder,
		},
		{
			name: "no seats",
			modify: func(r *entity.BookingRequest) {
				r.SeatIDs = nil
				r.Meals = nil
			},
			kind: booking.ErrEmptySeatSelection,
		},
		{
			name:    "unknown seat",
			modify:  func(r *entity.BookingRequest) { r.SeatIDs = []int64{1, 3, 42, 43} },
			kind:    booking.ErrUnknownSeat,
			seatIDs: []int64{42, 43},
		},
		{
			name:   "unknown meal",
			modify: func(r *entity.BookingRequest) { r.Meals[1].MealID = 99 },
			kind:   booking.ErrUnknownMeal,
		},
		{
			name:    "meal for a seat not in the booking",
			modify:  func(r *entity.BookingRequest) { r.Meals[1].SeatID = 2 },
			kind:    booking.ErrMealSeatMismatch,
			seatIDs: []int64{2},
		},
		{
			name: "unknown station reported before empty seats",
			modify: func(r *entity.BookingRequest) {
				r.DroppingStationID = 99
				r.SeatIDs = nil
			},
			kind: booking.ErrUnknownStation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			svc := newService(store)

			req := validRequest()
			tc.modify(&req)

			_, err := svc.Create(context.Background(), req)
			require.ErrorIs(t, err, tc.kind)
			assert.True(t, booking.IsValidation(err))

			if tc.seatIDs != nil {
				var bErr *booking.Error
				require.ErrorAs(t, err, &bErr)
				assert.Equal(t, tc.seatIDs, bErr.SeatIDs)
			}

			assert.Empty(t, store.bookings())
			assert.Empty(t, store.events())
		})
	}
}

func TestService_Create_seatConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	first := validRequest()
	first.SeatIDs = []int64{3}
	first.Meals = nil
	_, err := svc.Create(ctx, first)
	require.NoError(t, err)

	second := validRequest()
	second.SeatIDs = []int64{1, 3, 42}
	second.Meals = nil

	_, err = svc.Create(ctx, second)
	require.ErrorIs(t, err, booking.ErrSeatConflict)
	assert.False(t, booking.IsValidation(err))

	var bErr *booking.Error
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, []int64{3}, bErr.SeatIDs, "conflict is reported before unknown seats")

	second.TravelDate = "2026-03-21"
	_, err = svc.Create(ctx, second)
	require.ErrorIs(t, err, booking.ErrUnknownSeat, "the same seat is free on another date")

	assert.Len(t, store.bookings(), 1)
}

func TestService_Create_concurrentRequestsForSameSeat(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	const workers = 20

	var (
		wg        sync.WaitGroup
		lock      sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := validRequest()
			req.SeatIDs = []int64{2}
			req.Meals = nil

			_, err := svc.Create(ctx, req)

			lock.Lock()
			defer lock.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, booking.ErrSeatConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, store.confirmedLinks("2026-03-20", 2))
}

func TestService_Create_regeneratesTakenCodes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first, err := newService(store, booking.WithCodeGenerator(sequence("BKAAAAAA"))).
		Create(ctx, validRequest())
	require.NoError(t, err)
	require.Equal(t, "BKAAAAAA", first.Code)

	req := validRequest()
	req.TravelDate = "2026-03-21"

	second, err := newService(store, booking.WithCodeGenerator(sequence("BKAAAAAA", "BKAAAAAA", "BKBBBBBB"))).
		Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "BKBBBBBB", second.Code)
}

func TestService_Create_retriesCodeCollisionAtCommit(t *testing.T) {
	store := newMemStore()
	store.commitErrors = []error{codeTakenError{}}

	svc := newService(store, booking.WithCodeGenerator(sequence("BKAAAAAA", "BKCCCCCC")))

	details, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "BKCCCCCC", details.Code)
	assert.Equal(t, 2, store.transactions)
	assert.Len(t, store.bookings(), 1)
}

func TestService_Create_idSpaceExhausted(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	_, err := newService(store, booking.WithCodeGenerator(sequence("BKAAAAAA"))).Create(ctx, validRequest())
	require.NoError(t, err)

	calls := 0
	always := func() string {
		calls++
		return "BKAAAAAA"
	}

	req := validRequest()
	req.TravelDate = "2026-03-21"

	_, err = newService(store, booking.WithCodeGenerator(always), booking.WithMaxCodeAttempts(5)).Create(ctx, req)
	require.ErrorIs(t, err, booking.ErrIDSpaceExhausted)
	assert.Equal(t, 5, calls)
	assert.Len(t, store.bookings(), 1)
}

func TestService_Create_idSpaceExhaustedByCommitCollisions(t *testing.T) {
	store := newMemStore()
	store.commitErrors = []error{codeTakenError{}, codeTakenError{}, codeTakenError{}}

	svc := newService(store, booking.WithMaxCodeAttempts(3))

	_, err := svc.Create(context.Background(), validRequest())
	require.ErrorIs(t, err, booking.ErrIDSpaceExhausted)
	assert.Empty(t, store.bookings())
}

func TestService_Create_retriesSerializationFailures(t *testing.T) {
	store := newMemStore()
	store.commitErrors = []error{serializationError{}, serializationError{}}

	_, err := newService(store).Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, store.transactions)
}

func TestService_Create_givesUpAfterMaxTxAttempts(t *testing.T) {
	store := newMemStore()
	store.commitErrors = []error{serializationError{}, serializationError{}, serializationError{}}

	_, err := newService(store, booking.WithMaxTxAttempts(2)).Create(context.Background(), validRequest())
	require.Error(t, err)

	var bErr *booking.Error
	assert.False(t, errors.As(err, &bErr), "storage failures are not business errors")
	assert.Equal(t, 2, store.transactions)
	assert.Empty(t, store.bookings())
}

type countingBackOff struct {
	lock     sync.Mutex
	interval time.Duration
	calls    int
}

func (b *countingBackOff) NextBackOff() time.Duration {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls++
	return b.interval
}

func (b *countingBackOff) Reset() {}

func withBackOff(b backoff.BackOff) booking.Option {
	return booking.WithRetryBackOff(func() backoff.BackOff { return b })
}

func TestService_Create_backsOffBetweenRetries(t *testing.T) {
	store := newMemStore()
	store.commitErrors = []error{serializationError{}, serializationError{}}
	b := &countingBackOff{}

	_, err := newService(store, withBackOff(b)).Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, store.transactions)
	assert.Equal(t, 2, b.calls)
}

func TestService_Create_codeCollisionDoesNotBackOff(t *testing.T) {
	store := newMemStore()
	store.commitErrors = []error{codeTakenError{}}
	b := &countingBackOff{}

	_, err := newService(store, withBackOff(b)).Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, b.calls)
}

func TestService_Create_backOffStopsWithContext(t *testing.T) {
	store := newMemStore()
	store.commitErrors = []error{serializationError{}}
	b := &countingBackOff{interval: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newService(store, withBackOff(b)).Create(ctx, validRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, store.transactions)
	assert.Empty(t, store.bookings())
}

func TestService_Cancel_backsOffBetweenRetries(t *testing.T) {
	store := newMemStore()
	b := &countingBackOff{}
	svc := newService(store, withBackOff(b))

	details, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	store.lock.Lock()
	store.commitErrors = []error{serializationError{}}
	store.lock.Unlock()

	_, err = svc.Cancel(context.Background(), details.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, b.calls)
}

func TestService_Create_storageFailureRollsBack(t *testing.T) {
	store := newMemStore()
	store.mealLinkErr = errors.New("connection reset")

	_, err := newService(store).Create(context.Background(), validRequest())
	require.Error(t, err)
	assert.False(t, booking.IsValidation(err))

	assert.Empty(t, store.bookings())
	assert.Equal(t, 0, store.confirmedLinks("2026-03-20", 1))
	assert.Empty(t, store.events())
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	details, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	cancellation, err := svc.Cancel(ctx, details.Code)
	require.NoError(t, err)
	assert.Equal(t, details.Code, cancellation.Code)
	assert.True(t, details.TotalAmount.Equal(cancellation.RefundAmount))
	assert.NotEmpty(t, cancellation.Message)

	got, err := svc.Get(ctx, details.Code)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, got.Status)
	assert.Len(t, got.Seats, 2, "seat links are kept for history")

	require.Len(t, store.events(), 2)
	e, ok := store.events()[1].(event.BookingCancelled)
	require.True(t, ok)
	assert.True(t, details.TotalAmount.Equal(e.RefundAmount))
}

func TestService_Cancel_twice(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	details, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, details.Code)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, details.Code)
	require.ErrorIs(t, err, booking.ErrAlreadyCancelled)

	got, err := svc.Get(ctx, details.Code)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, got.Status)
	assert.True(t, details.TotalAmount.Equal(got.TotalAmount))
	assert.Len(t, store.events(), 2, "a rejected cancel publishes nothing")
}

func TestService_Cancel_caseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc := newService(newMemStore(), booking.WithCodeGenerator(sequence("BK7X3M9K")))

	_, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	cancellation, err := svc.Cancel(ctx, "bk7x3m9k")
	require.NoError(t, err)
	assert.Equal(t, "BK7X3M9K", cancellation.Code)
}

func TestService_Cancel_notFound(t *testing.T) {
	_, err := newService(newMemStore()).Cancel(context.Background(), "BKNOPE00")
	require.ErrorIs(t, err, booking.ErrNotFound)
}

func TestService_Cancel_releasesSeats(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	first, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.Create(ctx, validRequest())
	require.ErrorIs(t, err, booking.ErrSeatConflict)

	_, err = svc.Cancel(ctx, first.Code)
	require.NoError(t, err)

	_, err = svc.Create(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, store.confirmedLinks("2026-03-20", 1))
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store)

	created, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.Code)
	require.NoError(t, err)
	assert.Nil(t, got.PredictionPercentage)
	assert.Equal(t, created.Seats, got.Seats)
	assert.Equal(t, created.Meals, got.Meals)

	store.lock.Lock()
	store.state.predictions[created.ID] = 88.4
	store.lock.Unlock()

	got, err = svc.Get(ctx, created.Code)
	require.NoError(t, err)
	require.NotNil(t, got.PredictionPercentage)
	assert.InDelta(t, 88.4, *got.PredictionPercentage, 0.001)

	_, err = svc.Get(ctx, "BKMISSING")
	require.ErrorIs(t, err, booking.ErrNotFound)
}

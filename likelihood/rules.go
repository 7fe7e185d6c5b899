package likelihood

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

const baseScore = 75.0

// OccupancyReader reports how many seats are held by confirmed bookings on
// a date, and how many seats exist. Slightly stale answers are fine.
type OccupancyReader interface {
	Occupancy(ctx context.Context, travelDate string) (booked int, total int, err error)
}

type RuleBased struct {
	occupancy OccupancyReader
	now       func() time.Time
}

func NewRuleBased(occupancy OccupancyReader, now func() time.Time) RuleBased {
	if now == nil {
		now = time.Now
	}
	return RuleBased{occupancy: occupancy, now: now}
}

func (r RuleBased) Score(ctx context.Context, in Input) Score {
	f, ok := parseFeatures(in.TravelDate, r.now())
	if !ok {
		return invalidDate(ModelRuleBased)
	}

	leadImpact := leadTimeImpact(f.leadDays)
	occupancy := r.occupancyPercent(ctx, in.TravelDate)
	occupancyImpact := occupancyImpact(occupancy)
	dayImpact := dayOfWeekImpact(f.date.Weekday())
	seatImpact := seatCountImpact(in.SeatCount)

	total := baseScore + leadImpact + occupancyImpact + dayImpact + seatImpact

	return Score{
		Percentage: round1(clamp(total, 0, 100)),
		Factors: map[string]Factor{
			"days_until_travel": {
				Value:     f.leadDays,
				Impact:    ptr(leadImpact),
				Reasoning: "Advance bookings have higher confirmation rates",
			},
			"seat_occupancy": {
				Value:     round1(occupancy),
				Impact:    ptr(occupancyImpact),
				Reasoning: "Higher demand correlates with committed travelers",
			},
			"day_of_week": {
				Value:     f.date.Weekday().String(),
				Impact:    ptr(dayImpact),
				Reasoning: "Weekend/Monday travel shows confirmed intent",
			},
			"seat_count": {
				Value:     in.SeatCount,
				Impact:    ptr(seatImpact),
				Reasoning: "Smaller bookings have higher confirmation rates",
			},
		},
		Model: ModelRuleBased,
	}
}

// occupancyPercent degrades to zero when occupancy can't be read; the score
// is advisory and must not fail the caller.
func (r RuleBased) occupancyPercent(ctx context.Context, travelDate string) float64 {
	if r.occupancy == nil {
		return 0
	}

	booked, total, err := r.occupancy.Occupancy(ctx, travelDate)
	if err != nil {
		log.FromContext(ctx).WithError(err).Warn("Could not read seat occupancy, scoring without it")
		return 0
	}
	if total <= 0 {
		return 0
	}

	return float64(booked) / float64(total) * 100
}

func leadTimeImpact(days int) float64 {
	switch {
	case days < 0:
		return -50
	case days == 0:
		return -10
	case days <= 2:
		return -5
	case days <= 7:
		return 5
	case days <= 14:
		return 10
	default:
		return 15
	}
}

func occupancyImpact(percent float64) float64 {
	switch {
	case percent >= 80:
		return 12
	case percent >= 50:
		return 8
	case percent >= 25:
		return 5
	default:
		return 0
	}
}

func dayOfWeekImpact(d time.Weekday) float64 {
	switch d {
	case time.Friday, time.Saturday, time.Sunday:
		return 5
	case time.Monday:
		return 3
	default:
		return 0
	}
}

func seatCountImpact(n int) float64 {
	switch {
	case n == 1:
		return 3
	case n == 2:
		return 2
	case n <= 4:
		return 0
	default:
		return -3
	}
}

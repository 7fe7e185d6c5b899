// Package likelihood estimates how likely a booking is to be honoured
// rather than cancelled.
//
// Two strategies share the Scorer contract: RuleBased, a fixed explainable
// formula, and Learned, a logistic regression over a trained parameter
// bundle. Engine prefers Learned and falls back to RuleBased whenever the
// bundle is unavailable. Scoring never fails and never writes.
package likelihood

import (
	"context"
	"math"
	"time"

	"busbooking/entity"
)

const (
	ModelRuleBased          = "rule_based"
	ModelLogisticRegression = "logistic_regression"
)

// neutralPercentage is returned when the travel date cannot be parsed.
const neutralPercentage = 70.0

type Input struct {
	TravelDate   string
	SeatCount    int
	MealSelected bool
	// SeatType is a deck; anything other than upper is scored as lower.
	SeatType string
}

type Factor struct {
	Value     any      `json:"value,omitempty"`
	Encoded   *int     `json:"encoded,omitempty"`
	Impact    *float64 `json:"impact,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

type Score struct {
	Percentage float64           `json:"prediction_percentage"`
	Factors    map[string]Factor `json:"factors"`
	Model      string            `json:"model"`
}

type Scorer interface {
	Score(ctx context.Context, in Input) Score
}

func invalidDate(model string) Score {
	return Score{
		Percentage: neutralPercentage,
		Factors: map[string]Factor{
			"error": {Reasoning: "Invalid date format"},
		},
		Model: model,
	}
}

// features are the calendar facts both strategies derive from a request.
type features struct {
	date     time.Time
	leadDays int
}

func parseFeatures(travelDate string, now time.Time) (features, bool) {
	d, err := time.Parse(entity.TravelDateLayout, travelDate)
	if err != nil {
		return features{}, false
	}

	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)

	return features{
		date:     d,
		leadDays: int(math.Round(d.Sub(today).Hours() / 24)),
	}, true
}

// weekdayOrdinal numbers days Monday=0 through Sunday=6.
func weekdayOrdinal(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func ptr[T any](v T) *T {
	return &v
}

package likelihood

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"busbooking/entity"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

// FeatureNames is the order of the vector the classifier was trained on.
var FeatureNames = []string{"seat_type", "meal_selected", "booking_lead_days", "day_of_week", "num_seats"}

// Bundle is the output of offline training: a fitted standard scaler and a
// binary logistic regression.
type Bundle struct {
	Version      string    `json:"version"`
	Features     []string  `json:"features"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (b Bundle) Validate() error {
	n := len(FeatureNames)
	if len(b.Features) != n {
		return fmt.Errorf("bundle has %d features, want %d", len(b.Features), n)
	}
	for i, name := range FeatureNames {
		if b.Features[i] != name {
			return fmt.Errorf("feature %d is %q, want %q", i, b.Features[i], name)
		}
	}
	if len(b.Mean) != n || len(b.Scale) != n || len(b.Coefficients) != n {
		return fmt.Errorf("bundle parameters do not match %d features", n)
	}
	for _, params := range [][]float64{b.Mean, b.Scale, b.Coefficients, {b.Intercept}} {
		for _, v := range params {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.New("bundle contains non-finite parameters")
			}
		}
	}
	return nil
}

// Probability returns P(confirmed) for a raw, unscaled feature vector.
func (b Bundle) Probability(x []float64) float64 {
	z := b.Intercept
	for i, v := range x {
		scale := b.Scale[i]
		if scale == 0 {
			// Constant feature at training time.
			scale = 1
		}
		z += b.Coefficients[i] * (v - b.Mean[i]) / scale
	}
	return 1 / (1 + math.Exp(-z))
}

func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle %s: %w", path, err)
	}

	return &b, nil
}

// Model is a lazily loaded, immutable handle to a Bundle. The bundle is
// read at most once per Model; a failed load leaves the model unavailable
// for the rest of the process.
type Model struct {
	load func() (*Bundle, error)
}

func NewModel(path string) *Model {
	return &Model{load: sync.OnceValues(func() (*Bundle, error) {
		return ReadBundle(path)
	})}
}

// NewLoadedModel wraps an already loaded bundle.
func NewLoadedModel(b Bundle) *Model {
	return &Model{load: func() (*Bundle, error) { return &b, nil }}
}

// Unavailable is a model that never loads.
func Unavailable(reason error) *Model {
	return &Model{load: func() (*Bundle, error) { return nil, reason }}
}

// Bundle returns the loaded bundle, or an error when the model is
// unavailable.
func (m *Model) Bundle() (*Bundle, error) {
	if m == nil || m.load == nil {
		return nil, errors.New("no model configured")
	}
	return m.load()
}

type Learned struct {
	bundle *Bundle
	now    func() time.Time
}

func NewLearned(bundle *Bundle, now func() time.Time) Learned {
	if now == nil {
		now = time.Now
	}
	return Learned{bundle: bundle, now: now}
}

func (l Learned) Score(_ context.Context, in Input) Score {
	f, ok := parseFeatures(in.TravelDate, l.now())
	if !ok {
		return invalidDate(ModelLogisticRegression)
	}

	seatType := 1
	if in.SeatType == entity.DeckUpper {
		seatType = 0
	}
	meal := 0
	if in.MealSelected {
		meal = 1
	}
	leadDays := max(0, f.leadDays)
	weekday := weekdayOrdinal(f.date)

	x := []float64{float64(seatType), float64(meal), float64(leadDays), float64(weekday), float64(in.SeatCount)}
	p := l.bundle.Probability(x)

	seatTypeValue := in.SeatType
	if seatTypeValue == "" {
		seatTypeValue = entity.DeckLower
	}

	return Score{
		Percentage: round1(clamp(100*p, 0, 100)),
		Factors: map[string]Factor{
			"seat_type":         {Value: seatTypeValue, Encoded: ptr(seatType)},
			"meal_selected":     {Value: in.MealSelected, Encoded: ptr(meal)},
			"booking_lead_days": {Value: leadDays},
			"day_of_week":       {Value: f.date.Weekday().String(), Encoded: ptr(weekday)},
			"num_seats":         {Value: in.SeatCount},
		},
		Model: ModelLogisticRegression,
	}
}

// Engine scores with the learned model when it is available and with the
// rules otherwise.
type Engine struct {
	rules RuleBased
	model *Model
	now   func() time.Time
}

func NewEngine(rules RuleBased, model *Model, now func() time.Time) Engine {
	if now == nil {
		now = time.Now
	}
	return Engine{rules: rules, model: model, now: now}
}

func (e Engine) Score(ctx context.Context, in Input) Score {
	b, err := e.model.Bundle()
	if err != nil {
		log.FromContext(ctx).WithError(err).Debug("Prediction model unavailable, using rules")
		return e.rules.Score(ctx, in)
	}

	return NewLearned(b, e.now).Score(ctx, in)
}

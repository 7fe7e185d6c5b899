package message

import (
	"context"
	"fmt"

	"busbooking/entity"
	"busbooking/event"
	"busbooking/likelihood"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

type Scorer interface {
	Score(ctx context.Context, in likelihood.Input) likelihood.Score
}

type PredictionRepo interface {
	Save(ctx context.Context, bookingID int64, score likelihood.Score) error
}

type RefundRepo interface {
	Add(ctx context.Context, refund entity.Refund) error
}

type Handler struct {
	scorer      Scorer
	predictions PredictionRepo
	refunds     RefundRepo
}

func NewHandler(s Scorer, p PredictionRepo, r RefundRepo) Handler {
	return Handler{
		scorer:      s,
		predictions: p,
		refunds:     r,
	}
}

// ScoreBooking stores the confirmation likelihood of a new booking.
func (h Handler) ScoreBooking(ctx context.Context, e *event.BookingConfirmed) error {
	score := h.scorer.Score(ctx, likelihood.Input{
		TravelDate:   e.TravelDate,
		SeatCount:    e.SeatCount,
		MealSelected: e.MealSelected,
		SeatType:     e.SeatType,
	})

	if err := h.predictions.Save(ctx, e.BookingID, score); err != nil {
		return fmt.Errorf("saving prediction for booking %s: %w", e.Code, err)
	}

	log.FromContext(ctx).
		WithField("booking_code", e.Code).
		WithField("prediction_percentage", score.Percentage).
		WithField("model", score.Model).
		Info("Booking scored")

	return nil
}

func (h Handler) RecordRefund(ctx context.Context, e *event.BookingCancelled) error {
	refund := entity.Refund{
		BookingID: e.BookingID,
		Code:      e.Code,
		Amount:    e.RefundAmount,
	}
	if err := h.refunds.Add(ctx, refund); err != nil {
		return fmt.Errorf("recording refund for booking %s: %w", e.Code, err)
	}

	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"busbooking/booking"
	"busbooking/db"
	"busbooking/http"
	"busbooking/likelihood"
	"busbooking/message"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Deps struct {
	Logger      watermill.LoggerAdapter
	DB          *sqlx.DB
	RedisClient *redis.Client
	Model       *likelihood.Model
	HTTPAddr    string
}

type Service struct {
	forwarder  *message.Forwarder
	msgRouter  *message.Router
	httpRouter *echo.Echo
	httpAddr   string
}

func New(deps Deps) (*Service, error) {
	catalog := db.NewCatalogRepo(deps.DB)
	store := db.NewBookingStore(deps.DB, message.NewOutbox(deps.Logger))
	engine := likelihood.NewEngine(likelihood.NewRuleBased(catalog, time.Now), deps.Model, time.Now)

	forwarder, err := message.NewForwarder(deps.DB, deps.RedisClient, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}

	refunds := db.NewRefundRepo(deps.DB)

	msgRouter, err := message.NewRouter(message.RouterDeps{
		Logger:         deps.Logger,
		PredictionRepo: db.NewPredictionRepo(deps.DB),
		RedisClient:    deps.RedisClient,
		RefundRepo:     refunds,
		Scorer:         engine,
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	httpRouter := http.NewRouter(http.RouterDeps{
		Bookings: booking.NewService(store),
		Catalog:  catalog,
		Refunds:  refunds,
		Scorer:   engine,
	})

	httpAddr := deps.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	return &Service{
		forwarder:  forwarder,
		msgRouter:  msgRouter,
		httpRouter: httpRouter,
		httpAddr:   httpAddr,
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.forwarder.Run(runCtx); err != nil {
			return fmt.Errorf("running outbox forwarder: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		// Wait for message router
		<-s.msgRouter.Running()

		logrus.WithField("addr", s.httpAddr).Info("Starting HTTP server...")
		err := s.httpRouter.Start(s.httpAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")

	return nil
}

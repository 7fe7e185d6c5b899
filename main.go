package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"busbooking/config"
	"busbooking/db"
	"busbooking/likelihood"
	"busbooking/service"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	log.Init(logrus.InfoLevel)
	logger := watermill.NewStdLogger(false, false)

	decimal.MarshalJSONWithoutQuotes = true

	if err := run(logger); err != nil {
		logger.Error("failed to run", err, nil)
		os.Exit(1)
	}
}

func run(logger watermill.LoggerAdapter) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis connection", err, nil)
		}
	}()

	dbConn, err := sqlx.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close db connection", err, nil)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := db.InitialiseDB(ctx, dbConn); err != nil {
		return fmt.Errorf("initialising db: %w", err)
	}

	if cfg.SeedCatalog {
		seeded, err := db.SeedCatalog(ctx, dbConn)
		if err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
		if seeded {
			logrus.Info("Seeded catalog")
		}
	}

	model := likelihood.NewModel(cfg.PredictionModelPath)
	if _, err := model.Bundle(); err != nil {
		logrus.WithError(err).Warn("Prediction model unavailable, scoring with rules")
	}

	svc, err := service.New(service.Deps{
		Logger:      logger,
		DB:          dbConn,
		RedisClient: rdb,
		Model:       model,
		HTTPAddr:    cfg.HTTPAddr,
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	return svc.Run(ctx)
}

// Package config reads service settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresURL         string
	RedisAddr           string
	HTTPAddr            string
	PredictionModelPath string
	SeedCatalog         bool
}

// Load reads the configuration. Variables already set in the environment
// win over the .env file.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading env file: %w", err)
	}

	seed, err := boolOrDefault("SEED_CATALOG", true)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		HTTPAddr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
		PredictionModelPath: getEnvOrDefault("PREDICTION_MODEL_PATH", "models/prediction_model.json"),
		SeedCatalog:         seed,
	}

	if cfg.PostgresURL == "" {
		return Config{}, errors.New("POSTGRES_URL is required")
	}
	if cfg.RedisAddr == "" {
		return Config{}, errors.New("REDIS_ADDR is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func boolOrDefault(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

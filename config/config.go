// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the API process needs to start.
type Config struct {
	DatabaseURL string
	RedisAddr   string
	ListenAddr  string
	JWTSecret   string

	SweepInterval     time.Duration
	ReconcileInterval time.Duration

	LogLevel string
}

// Load reads the environment. A missing .env file is not an error; missing
// required variables are.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SweepInterval:     getDuration("SWEEP_INTERVAL", time.Minute),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 5*time.Second),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

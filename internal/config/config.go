package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	ServerID        uuid.UUID
	SessionTTL      time.Duration
	AssertionLeeway time.Duration
	LogLevel        string
	RateLimitRPS    int
}

func LoadConfig() (*Config, error) {
	sessionTTLStr := getEnv("SESSION_TTL", "24h")
	sessionTTL, err := time.ParseDuration(sessionTTLStr)
	if err != nil {
		return nil, errors.New("invalid SESSION_TTL format")
	}

	leewayStr := getEnv("ASSERTION_LEEWAY", "5s")
	leeway, err := time.ParseDuration(leewayStr)
	if err != nil {
		return nil, errors.New("invalid ASSERTION_LEEWAY format")
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_RPS", "100"))
	if err != nil {
		return nil, errors.New("invalid RATE_LIMIT_RPS format")
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		SessionTTL:      sessionTTL,
		AssertionLeeway: leeway,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RateLimitRPS:    rateLimit,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	// SERVER_ID is the audience value assertions must target. It has to be
	// stable across restarts or every client proof stops verifying.
	serverIDStr := os.Getenv("SERVER_ID")
	if serverIDStr == "" {
		return nil, errors.New("SERVER_ID is required")
	}
	serverID, err := uuid.Parse(serverIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_ID: %w", err)
	}
	cfg.ServerID = serverID

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

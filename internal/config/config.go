package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/eliseohh/channelstatbot/internal/stats"
)

type Config struct {
	Token       string
	ChannelID   string
	Backend     string
	StatsPath   string
	AdminIDs    []int64
	PollTimeout time.Duration
	LogLevel    zerolog.Level
}

// Load reads the environment, after merging in a .env file when one is
// present in the working directory.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Token:     getEnv("TELEGRAM_TOKEN", os.Getenv("TOKEN")),
		ChannelID: strings.TrimSpace(os.Getenv("CHANNEL_ID")),
		Backend:   strings.ToLower(getEnv("STATS_BACKEND", stats.BackendJSON)),
	}

	if cfg.Token == "" {
		return Config{}, errors.New("TELEGRAM_TOKEN is required")
	}
	if cfg.ChannelID == "" {
		return Config{}, errors.New("CHANNEL_ID is required")
	}

	switch cfg.Backend {
	case stats.BackendJSON:
		cfg.StatsPath = getEnv("STATS_FILE", "stats.json")
	case stats.BackendSQLite:
		cfg.StatsPath = getEnv("STATS_FILE", "stats.db")
	default:
		return Config{}, fmt.Errorf("STATS_BACKEND: unknown backend %q", cfg.Backend)
	}

	ids, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return Config{}, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	cfg.AdminIDs = ids

	cfg.PollTimeout, err = time.ParseDuration(getEnv("POLL_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("POLL_TIMEOUT: %w", err)
	}

	cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr            string
	DBPath                string
	PollInterval          time.Duration
	StaleAfter            time.Duration
	SecretKey             []byte // nil when RUNPANEL_SECRET_KEY is unset; tokens cannot be stored.
	DefaultRunRetention   int
	IncrementalFetchCount int
	FetchConcurrency      int
	LogLevel              slog.Level
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional:
//
//	RUNPANEL_LISTEN_ADDR             127.0.0.1:8080
//	RUNPANEL_DB_PATH                 runpanel.db
//	RUNPANEL_POLL_INTERVAL           30s  (tick on which due repositories are polled)
//	RUNPANEL_STALE_AFTER             5m
//	RUNPANEL_SECRET_KEY              64 hex chars (32 bytes), no default
//	RUNPANEL_DEFAULT_RUN_RETENTION   500  (200..1000)
//	RUNPANEL_INCREMENTAL_FETCH_COUNT 10
//	RUNPANEL_FETCH_CONCURRENCY       4
//	RUNPANEL_LOG_LEVEL               info
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:            "127.0.0.1:8080",
		DBPath:                "runpanel.db",
		PollInterval:          30 * time.Second,
		StaleAfter:            5 * time.Minute,
		DefaultRunRetention:   model.DefaultRunRetention,
		IncrementalFetchCount: 10,
		FetchConcurrency:      4,
		LogLevel:              slog.LevelInfo,
	}

	if v, ok := os.LookupEnv("RUNPANEL_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("RUNPANEL_DB_PATH"); ok {
		cfg.DBPath = v
	}

	var err error
	if cfg.PollInterval, err = lookupDuration("RUNPANEL_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = lookupDuration("RUNPANEL_STALE_AFTER", cfg.StaleAfter); err != nil {
		return nil, err
	}
	if cfg.IncrementalFetchCount, err = lookupPositiveInt("RUNPANEL_INCREMENTAL_FETCH_COUNT", cfg.IncrementalFetchCount); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = lookupPositiveInt("RUNPANEL_FETCH_CONCURRENCY", cfg.FetchConcurrency); err != nil {
		return nil, err
	}
	if cfg.DefaultRunRetention, err = lookupPositiveInt("RUNPANEL_DEFAULT_RUN_RETENTION", cfg.DefaultRunRetention); err != nil {
		return nil, err
	}
	if cfg.DefaultRunRetention < model.MinRunRetention || cfg.DefaultRunRetention > model.MaxRunRetention {
		return nil, fmt.Errorf("RUNPANEL_DEFAULT_RUN_RETENTION must be between %d and %d, got %d",
			model.MinRunRetention, model.MaxRunRetention, cfg.DefaultRunRetention)
	}

	if v, ok := os.LookupEnv("RUNPANEL_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("RUNPANEL_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("RUNPANEL_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("RUNPANEL_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return nil, fmt.Errorf("RUNPANEL_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func lookupDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}

func lookupPositiveInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

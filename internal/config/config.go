package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv       string
	Port         string
	LogLevel     string
	LogFormat    string
	DiscordToken string
	DatabaseURL  string
	RedisURL     string
	OmdbAPIKey   string

	// Engine knobs
	StatsCacheTTL time.Duration
	GuardCooldown time.Duration
	NoticeTTL     time.Duration
}

func Load() (*Config, error) {
	// .env is a development convenience; missing file is fine.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		DiscordToken: getEnv("DISCORD_TOKEN", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		OmdbAPIKey:   getEnv("OMDB_API_KEY", ""),
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OmdbAPIKey == "" {
		return nil, fmt.Errorf("OMDB_API_KEY is required")
	}

	var err error
	cfg.StatsCacheTTL, err = getSeconds("STATS_CACHE_TTL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.GuardCooldown, err = getSeconds("GUARD_COOLDOWN_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	cfg.NoticeTTL, err = getSeconds("NOTICE_TTL_SECONDS", 5)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSeconds(key string, defaultSeconds int) (time.Duration, error) {
	raw := getEnv(key, strconv.Itoa(defaultSeconds))
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds: %w", key, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

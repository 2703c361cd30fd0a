package main

import (
	"fmt"
	"os"
	"time"
)

// Config is everything the server reads from the environment.
type Config struct {
	Port         string
	IsProduction bool
	LogLevel     string

	Location     *time.Location
	CalendarPath string
	ColorSalt    string
	ShareURL     string

	StorageBackend    string
	SessionDir        string
	DatabasePath      string
	DatabaseURL       string
	SnapshotRetention time.Duration

	CookieMaxAge   time.Duration
	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int
}

// loadConfig reads Config from the environment. Call godotenv.Load first.
func loadConfig() (Config, error) {
	tzName := getEnv("GAME_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("GAME_TIMEZONE %q: %w", tzName, err)
	}
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		IsProduction: os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production",
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		Location:     loc,
		CalendarPath: getEnv("COLOR_CALENDAR_PATH", "data/colors.json"),
		ColorSalt:    getEnv("COLOR_SALT", "colordle"),
		ShareURL:     getEnv("SHARE_URL", DefaultShareURL),

		StorageBackend:    getEnv("STORAGE_BACKEND", "file"),
		SessionDir:        getEnv("SESSION_DIR", "data/sessions"),
		DatabasePath:      getEnv("DATABASE_PATH", "data/colordle.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SnapshotRetention: getEnvDuration("SNAPSHOT_RETENTION", 48*time.Hour),

		CookieMaxAge:   getEnvDuration("COOKIE_MAX_AGE", 48*time.Hour),
		StaticCacheAge: getEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}
	if getEnvBool("PRODUCTION", false) {
		cfg.IsProduction = true
	}
	return cfg, nil
}

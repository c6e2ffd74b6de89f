package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the environment, after merging a .env file when one exists.
// Variables already set in the environment win over .env.
func Load() App {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env")
	}

	cfg := App{
		Port:        getenv("APP_PORT", "8080"),
		Env:         getenv("APP_ENV", "dev"),
		StoreDriver: getenv("STORE_DRIVER", DriverPostgres),
		JWTSecret:   getenv("JWT_SECRET", "local_dev_secret"),
		AutoMigrate: getbool("AUTO_MIGRATE", true),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		InFlightTTL:        seconds("INFLIGHT_TTL_SECONDS", 10),
		AvailabilityTTL:    seconds("AVAILABILITY_CACHE_TTL_SECONDS", 300),
		RateLimitPerSecond: getfloat("RATE_LIMIT_PER_SECOND", 20),
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		cfg.DatabaseURL = must("DATABASE_URL")
	case DriverMemory:
	default:
		slog.Error("unknown STORE_DRIVER", "value", cfg.StoreDriver)
		panic("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
	if cfg.Env != "dev" && cfg.JWTSecret == "local_dev_secret" {
		slog.Warn("JWT_SECRET not set outside dev")
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}

func getfloat(k string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getbool(k string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}

func seconds(k string, def int) time.Duration {
	return time.Duration(getint(k, def)) * time.Second
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("required env missing", "key", k)
		panic("missing env " + k)
	}
	return v
}

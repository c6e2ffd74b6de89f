package config

import "time"

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	Env         string `env:"APP_ENV" default:"dev"`
	StoreDriver string `env:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" default:"true"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`

	InFlightTTL        time.Duration `env:"INFLIGHT_TTL_SECONDS" default:"10"`
	AvailabilityTTL    time.Duration `env:"AVAILABILITY_CACHE_TTL_SECONDS" default:"300"`
	RateLimitPerSecond float64       `env:"RATE_LIMIT_PER_SECOND" default:"20"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

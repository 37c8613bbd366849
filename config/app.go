package config

import "time"

type App struct {
	Port        string `envconfig:"APP_PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"` // empty runs on the in-memory store
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	Env         string `envconfig:"APP_ENV" default:"dev"`
	Timezone    string `envconfig:"APP_TIMEZONE" default:"Asia/Bangkok"`

	// embedded so the env keys stay unprefixed
	Redis
	Rabbit
	Booking
	Otel
}

type Redis struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	CacheTTL time.Duration `envconfig:"AVAILABILITY_CACHE_TTL" default:"30s"`
}

type Rabbit struct {
	URL      string `envconfig:"RABBIT_URL"`
	Exchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.events"`
}

type Booking struct {
	OperationTimeout time.Duration `envconfig:"OPERATION_TIMEOUT" default:"5s"`
	HoldTTL          time.Duration `envconfig:"HOLD_TTL" default:"15m"`
	SweepInterval    time.Duration `envconfig:"HOLD_SWEEP_INTERVAL" default:"1m"`
	MaxWindowDays    int           `envconfig:"AVAILABILITY_MAX_WINDOW_DAYS" default:"366"`
}

type Otel struct {
	Enabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	Endpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"otel-collector:4317"`
}

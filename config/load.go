package config

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads an optional .env file and then the process environment.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file", "err", err)
	}

	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, fmt.Errorf("load config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return App{}, err
	}
	return c, nil
}

// Location is the zone that decides which calendar day is "today".
func (c App) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

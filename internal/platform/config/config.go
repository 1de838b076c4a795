// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backends accepted by STORE_BACKEND.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Server holds the settings of the HTTP server process.
type Server struct {
	Addr                string `env:"ADDR" envDefault:":8080"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
	StoreBackend        string `env:"STORE_BACKEND" envDefault:"redis"`
	ExchangeTimezone    string `env:"EXCHANGE_TIMEZONE" envDefault:"America/New_York"`
	SingleFlightFetches bool   `env:"SINGLE_FLIGHT_FETCHES" envDefault:"false"`
}

// Warm holds the settings of the cache warmer.
type Warm struct {
	Symbols  []string `env:"WARM_SYMBOLS" envSeparator:","`
	Interval string   `env:"WARM_INTERVAL" envDefault:"15min"`
}

// Load reads .env (if present) into the process environment and parses it into cfg.
// cfg must be a pointer to a struct with env tags.
func Load(cfg any) error {
	// Ignore error if .env is missing
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer loads and validates the server settings.
func LoadServer() (Server, error) {
	var cfg Server
	if err := Load(&cfg); err != nil {
		return Server{}, err
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case BackendRedis, BackendPostgres:
	default:
		return Server{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if _, err := cfg.Location(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Location resolves the exchange time zone.
func (s Server) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.ExchangeTimezone)
	if err != nil {
		return nil, fmt.Errorf("EXCHANGE_TIMEZONE %q: %w", s.ExchangeTimezone, err)
	}
	return loc, nil
}

// LoadWarm loads the warmer settings. Symbols are trimmed and empty items dropped.
func LoadWarm() (Warm, error) {
	var cfg Warm
	if err := Load(&cfg); err != nil {
		return Warm{}, err
	}
	symbols := cfg.Symbols[:0]
	for _, s := range cfg.Symbols {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	cfg.Symbols = symbols
	return cfg, nil
}

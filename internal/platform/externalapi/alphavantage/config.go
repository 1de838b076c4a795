// Package alphavantage provides a client for the Alpha Vantage stock market API.
package alphavantage

import (
	"time"

	"price_backend/internal/platform/config"
)

// Config holds configuration for the Alpha Vantage API client.
type Config struct {
	APIKey    string        `env:"ALPHAVANTAGE_API_KEY"`                                           // API key for authentication
	BaseURL   string        `env:"ALPHAVANTAGE_BASE_URL" envDefault:"https://www.alphavantage.co"` // Base URL for the API
	Timeout   time.Duration `env:"ALPHAVANTAGE_TIMEOUT" envDefault:"10s"`                          // HTTP request timeout
	PerMinute int           `env:"ALPHAVANTAGE_PER_MINUTE" envDefault:"5"`                         // Calls allowed per minute
	PerDay    int           `env:"ALPHAVANTAGE_PER_DAY" envDefault:"500"`                          // Calls allowed per UTC day
}

// LoadConfig loads Alpha Vantage configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

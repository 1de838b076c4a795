// Package di provides dependency injection factories for creating application components.
package di

import (
	"price_backend/internal/platform/externalapi/alphavantage"
	infrahttp "price_backend/internal/platform/http"
	"price_backend/internal/shared/ratelimiter"
)

// NewMarket creates a fully configured AlphaVantageMarket with HTTP client and quota guard.
func NewMarket(cfg alphavantage.Config) *alphavantage.AlphaVantageMarket {
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	limiter := ratelimiter.NewRateLimiter(cfg.PerMinute, cfg.PerDay)
	return alphavantage.NewAlphaVantageMarket(cfg, httpClient, limiter)
}

package di

import (
	"time"

	"price_backend/internal/feature/prices/transport/handler"
	"price_backend/internal/feature/prices/usecase"
	"price_backend/internal/platform/config"
)

// NewPricesUsecase creates the PricesUsecase for the server settings.
func NewPricesUsecase(cfg config.Server, loc *time.Location, store usecase.CacheStore, market usecase.MarketRepository, rec usecase.Recorder) *usecase.PricesUsecase {
	return usecase.NewPricesUsecase(store, market,
		usecase.WithLocation(loc),
		usecase.WithRecorder(rec),
		usecase.WithSingleFlight(cfg.SingleFlightFetches),
	)
}

// NewPricesHandler creates the HTTP handler on top of uc.
func NewPricesHandler(uc *usecase.PricesUsecase) *handler.PricesHandler {
	return handler.NewPricesHandler(uc)
}

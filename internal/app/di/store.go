package di

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	priceadapters "price_backend/internal/feature/prices/adapters"
	"price_backend/internal/feature/prices/usecase"
	"price_backend/internal/platform/cache"
	"price_backend/internal/platform/config"
)

// Store is a CacheStore that can also report its reachability.
type Store interface {
	usecase.CacheStore
	Ping(ctx context.Context) error
}

// NewCacheStore creates the CacheStore for backend.
// The Postgres backend uses db; otherwise it returns a Redis-backed store,
// which degrades to "unavailable" on every call when rdb is nil.
func NewCacheStore(backend string, rdb *redis.Client, db *gorm.DB, namespace string, retention time.Duration) Store {
	if backend == config.BackendPostgres {
		return priceadapters.NewPriceCacheRepository(db)
	}
	return cache.NewRedisStore(rdb, namespace, retention)
}

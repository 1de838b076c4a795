package di

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/platform/cache"
	"price_backend/internal/platform/config"
)

func TestNewCacheStore_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewCacheStore(config.BackendRedis, rdb, nil, "", 0)

	assert.IsType(t, &cache.RedisStore{}, s)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewCacheStore_RedisUnavailable(t *testing.T) {
	t.Parallel()

	s := NewCacheStore(config.BackendRedis, nil, nil, "", 0)

	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrStoreUnavailable)
	_, err := s.GetIntraday(context.Background(), "AAPL", "2024-03-01")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNewCacheStore_Postgres(t *testing.T) {
	t.Parallel()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s := NewCacheStore(config.BackendPostgres, nil, db, "", 0)

	_, isRedis := s.(*cache.RedisStore)
	assert.False(t, isRedis)
	assert.NoError(t, s.Ping(context.Background()))
}

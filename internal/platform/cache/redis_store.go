// Package cache provides the Redis-backed cache document store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"price_backend/internal/feature/prices/domain"
	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
)

const (
	fieldSymbol      = "symbol"
	fieldGranularity = "granularity"
	fieldLastUpdated = "lastUpdated"
	pricesPrefix     = "prices."
)

// RedisStore stores cache documents in Redis.
//
// Intraday documents are JSON strings overwritten with SET. Aggregate documents are
// hashes with one "prices.<period>" field per candle, so a single period can be merged
// with HSET while a wholesale rewrite is DEL + HSET inside MULTI.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	retention time.Duration
}

var _ usecase.CacheStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. If namespace is empty, it uses "prices".
// A zero retention keeps documents until something else removes them.
func NewRedisStore(rdb *redis.Client, namespace string, retention time.Duration) *RedisStore {
	if namespace == "" {
		namespace = "prices"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{rdb: rdb, namespace: namespace, retention: retention}
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.rdb == nil {
		return domain.ErrStoreUnavailable
	}
	return s.rdb.Ping(ctx).Err()
}

// GetIntraday reads an intraday document.
func (s *RedisStore) GetIntraday(ctx context.Context, symbol, date string) (*entity.IntradayCacheEntry, error) {
	if s.rdb == nil {
		return nil, domain.ErrStoreUnavailable
	}
	key := s.docKey(symbol, entity.IntradayKey(date))

	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrCacheRead, key, err)
	}

	var entry entity.IntradayCacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		// Delete corrupted cache entry
		_ = s.rdb.Del(ctx, key).Err()
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrCacheRead, key, err)
	}
	return &entry, nil
}

// SetIntraday overwrites an intraday document.
func (s *RedisStore) SetIntraday(ctx context.Context, entry entity.IntradayCacheEntry) error {
	if s.rdb == nil {
		return domain.ErrStoreUnavailable
	}
	key := s.docKey(entry.Symbol, entity.IntradayKey(entry.Date))

	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrCacheWrite, key, err)
	}
	if err := s.rdb.Set(ctx, key, b, s.retention).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", domain.ErrCacheWrite, key, err)
	}
	return nil
}

// GetAggregate reads an aggregate document.
func (s *RedisStore) GetAggregate(ctx context.Context, symbol string, granularity entity.Granularity) (*entity.AggregateCacheEntry, error) {
	if s.rdb == nil {
		return nil, domain.ErrStoreUnavailable
	}
	key := s.docKey(symbol, string(granularity))

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall %s: %w", domain.ErrCacheRead, key, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrEntryNotFound
	}

	entry := entity.AggregateCacheEntry{
		Symbol:      symbol,
		Granularity: granularity,
		Prices:      make(map[string]entity.Candle, len(fields)),
	}
	for name, v := range fields {
		switch {
		case name == fieldLastUpdated:
			ts, err := decodeTimestamp(v)
			if err != nil {
				return nil, fmt.Errorf("%w: decode %s.%s: %w", domain.ErrCacheRead, key, name, err)
			}
			entry.LastUpdated = ts
		case strings.HasPrefix(name, pricesPrefix):
			var c entity.Candle
			if err := json.Unmarshal([]byte(v), &c); err != nil {
				return nil, fmt.Errorf("%w: decode %s.%s: %w", domain.ErrCacheRead, key, name, err)
			}
			entry.Prices[strings.TrimPrefix(name, pricesPrefix)] = c
		}
	}
	return &entry, nil
}

// SetAggregate rewrites an aggregate document wholesale.
func (s *RedisStore) SetAggregate(ctx context.Context, entry entity.AggregateCacheEntry) error {
	if s.rdb == nil {
		return domain.ErrStoreUnavailable
	}
	key := s.docKey(entry.Symbol, string(entry.Granularity))

	values, err := aggregateFields(entry)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrCacheWrite, key, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values...)
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: rewrite %s: %w", domain.ErrCacheWrite, key, err)
	}
	return nil
}

// MergeUpsertField writes one period of an aggregate document without touching the others.
func (s *RedisStore) MergeUpsertField(ctx context.Context, symbol string, granularity entity.Granularity, periodKey string, candle entity.Candle, updatedAt time.Time) error {
	if s.rdb == nil {
		return domain.ErrStoreUnavailable
	}
	key := s.docKey(symbol, string(granularity))

	cb, err := json.Marshal(candle)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrCacheWrite, key, err)
	}
	tb, err := json.Marshal(entity.NewTimestamp(updatedAt))
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrCacheWrite, key, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldSymbol, symbol,
			fieldGranularity, string(granularity),
			pricesPrefix+periodKey, string(cb),
			fieldLastUpdated, string(tb),
		)
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: hset %s: %w", domain.ErrCacheWrite, key, err)
	}
	return nil
}

// docKey generates the Redis key of a per-symbol document.
func (s *RedisStore) docKey(symbol, subKey string) string {
	return fmt.Sprintf("%s:%s:%s", s.namespace, safe(symbol), safe(subKey))
}

func aggregateFields(entry entity.AggregateCacheEntry) ([]any, error) {
	tb, err := json.Marshal(entry.LastUpdated)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, 6+2*len(entry.Prices))
	values = append(values,
		fieldSymbol, entry.Symbol,
		fieldGranularity, string(entry.Granularity),
		fieldLastUpdated, string(tb),
	)
	for period, c := range entry.Prices {
		cb, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		values = append(values, pricesPrefix+period, string(cb))
	}
	return values, nil
}

// decodeTimestamp reads a lastUpdated field written either as JSON or as a bare string.
func decodeTimestamp(v string) (entity.Timestamp, error) {
	var ts entity.Timestamp
	if err := json.Unmarshal([]byte(v), &ts); err == nil {
		return ts, nil
	}
	err := ts.UnmarshalJSON([]byte(strconv.Quote(v)))
	return ts, err
}
